package rbac

// Capabilities. Course capabilities are checked against the caller's
// enrolment role in the instance's course; site capabilities against the
// role stored on the user.
const (
	CapAddInstance     = "checkmark:addinstance"
	CapView            = "checkmark:view"
	CapSubmit          = "checkmark:submit"
	CapGrade           = "checkmark:grade"
	CapManageOverrides = "checkmark:manageoverrides"
	CapViewReports     = "checkmark:viewreports"
	CapExport          = "checkmark:export"

	CapCourseCreate   = "course:create"
	CapCourseManage   = "course:manage"
	CapUsersBulk      = "users:bulk_upsert"
	CapUsersList      = "users:list"
	CapChangePassword = "user:change_password"
	CapEventsRead     = "events:read"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"student": {
		CapView,
		CapSubmit,
		CapChangePassword,
	},
	"teacher": {
		"checkmark:*",
		CapCourseManage,
		CapUsersList,
		CapChangePassword,
	},
	"admin": {
		"*",
	},
}
