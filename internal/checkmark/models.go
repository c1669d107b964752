package checkmark

// Checkmark is one configured activity instance.
type Checkmark struct {
	ID                    int64  `db:"id" json:"id"`
	CourseID              int64  `db:"course_id" json:"course_id"`
	Name                  string `db:"name" json:"name"`
	Intro                 string `db:"intro" json:"intro"`
	AlwaysShowDescription bool   `db:"alwaysshowdescription" json:"alwaysshowdescription"`
	Resubmit              bool   `db:"resubmit" json:"resubmit"`
	TimeAvailable         int64  `db:"timeavailable" json:"timeavailable"`
	TimeDue               int64  `db:"timedue" json:"timedue"`
	CutoffDate            int64  `db:"cutoffdate" json:"cutoffdate"`
	GradingDue            int64  `db:"gradingdue" json:"gradingdue"`
	EmailTeachers         bool   `db:"emailteachers" json:"emailteachers"`
	Grade                 int    `db:"grade" json:"grade"` // max grade, 0 disables grading
	FlexibleNaming        bool   `db:"flexiblenaming" json:"flexiblenaming"`
	ExamplePrefix         string `db:"exampleprefix" json:"exampleprefix"`
	ExampleStart          int    `db:"examplestart" json:"examplestart"`
	ExampleCount          int    `db:"examplecount" json:"examplecount"`
	TrackAttendance       bool   `db:"trackattendance" json:"trackattendance"`
	AttendanceGradeLink   bool   `db:"attendancegradelink" json:"attendancegradelink"`
	AttendanceGradebook   bool   `db:"attendancegradebook" json:"attendancegradebook"`
	PresentationGrading   bool   `db:"presentationgrading" json:"presentationgrading"`
	PresentationGrade     int    `db:"presentationgrade" json:"presentationgrade"`
	PresentationGradebook bool   `db:"presentationgradebook" json:"presentationgradebook"`
	TimeCreated           int64  `db:"timecreated" json:"timecreated"`
	TimeModified          int64  `db:"timemodified" json:"timemodified"`

	Examples []Example `db:"-" json:"examples,omitempty"`
}

// Graded reports whether the instance carries a point grade.
func (c Checkmark) Graded() bool { return c.Grade > 0 }

// Example is one checklist item.
type Example struct {
	ID          int64  `db:"id" json:"id"`
	CheckmarkID int64  `db:"checkmark_id" json:"checkmark_id"`
	Name        string `db:"name" json:"name"`
	Grade       int    `db:"grade" json:"grade"`
	SortOrder   int    `db:"sortorder" json:"sortorder"`

	Prefix string `db:"-" json:"-"`
}

// Label is the name shown to users, including the instance prefix.
func (e Example) Label() string { return e.Prefix + e.Name }

// State is the stored value of a check. Bit 0 is "checked", bit 1 marks a
// state the teacher set.
type State int

const (
	Unchecked            State = 0
	Checked              State = 1
	UncheckedOverwritten State = 2
	CheckedOverwritten   State = 3
)

func (s State) IsChecked() bool     { return s&1 == 1 }
func (s State) IsOverwritten() bool { return s&2 == 2 }

// Overwrite returns the teacher-set variant of a checked/unchecked value.
func Overwrite(checked bool) State {
	if checked {
		return CheckedOverwritten
	}
	return UncheckedOverwritten
}

type Check struct {
	ID           int64 `db:"id" json:"id"`
	SubmissionID int64 `db:"submission_id" json:"submission_id"`
	ExampleID    int64 `db:"example_id" json:"example_id"`
	State        State `db:"state" json:"state"`
}

type Submission struct {
	ID           int64 `db:"id" json:"id"`
	CheckmarkID  int64 `db:"checkmark_id" json:"checkmark_id"`
	UserID       int64 `db:"user_id" json:"user_id"`
	TimeCreated  int64 `db:"timecreated" json:"timecreated"`
	TimeModified int64 `db:"timemodified" json:"timemodified"`

	Checks []Check `db:"-" json:"checks"`
}

// StateOf returns the stored state of an example and false when no row exists.
func (s Submission) StateOf(exampleID int64) (State, bool) {
	for _, c := range s.Checks {
		if c.ExampleID == exampleID {
			return c.State, true
		}
	}
	return Unchecked, false
}

// Attendance values; a nil pointer means unknown.
const (
	Absent  = 0
	Present = 1
)

type Feedback struct {
	ID                   int64    `db:"id" json:"id"`
	CheckmarkID          int64    `db:"checkmark_id" json:"checkmark_id"`
	UserID               int64    `db:"user_id" json:"user_id"`
	Grade                *float64 `db:"grade" json:"grade"`
	Feedback             string   `db:"feedback" json:"feedback"`
	Attendance           *int     `db:"attendance" json:"attendance"`
	PresentationGrade    *float64 `db:"presentationgrade" json:"presentationgrade"`
	PresentationFeedback string   `db:"presentationfeedback" json:"presentationfeedback"`
	GraderID             int64    `db:"grader_id" json:"grader_id"`
	Mailed               bool     `db:"mailed" json:"mailed"`
	TimeCreated          int64    `db:"timecreated" json:"timecreated"`
	TimeModified         int64    `db:"timemodified" json:"timemodified"`
}

// Override replaces activity dates for one user or one group. Nil fields
// fall through to the next source.
type Override struct {
	ID            int64  `db:"id" json:"id"`
	CheckmarkID   int64  `db:"checkmark_id" json:"checkmark_id"`
	UserID        *int64 `db:"user_id" json:"user_id,omitempty"`
	GroupID       *int64 `db:"group_id" json:"group_id,omitempty"`
	TimeAvailable *int64 `db:"timeavailable" json:"timeavailable"`
	TimeDue       *int64 `db:"timedue" json:"timedue"`
	CutoffDate    *int64 `db:"cutoffdate" json:"cutoffdate"`
	GroupPriority *int   `db:"grouppriority" json:"grouppriority,omitempty"`
	ModifierID    int64  `db:"modifier_id" json:"modifier_id"`
	TimeCreated   int64  `db:"timecreated" json:"timecreated"`
}

func (o Override) IsGroup() bool { return o.GroupID != nil }

// Dates are the effective availability dates for one user.
type Dates struct {
	TimeAvailable int64 `json:"timeavailable"`
	TimeDue       int64 `json:"timedue"`
	CutoffDate    int64 `json:"cutoffdate"`
}

// Open reports whether submissions are accepted at now.
func (d Dates) Open(now int64) bool {
	if d.TimeAvailable != 0 && now < d.TimeAvailable {
		return false
	}
	if d.CutoffDate != 0 && now > d.CutoffDate {
		return false
	}
	return true
}

// Late reports whether a submission at t is after the due date.
func (d Dates) Late(t int64) bool {
	return d.TimeDue != 0 && t > d.TimeDue
}

// Participant is an enrolled user as the checkmark sees them.
type Participant struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"firstname" json:"firstname"`
	LastName  string `db:"lastname" json:"lastname"`
	Email     string `db:"email" json:"email"`
	IDNumber  string `db:"idnumber" json:"idnumber"`
}

func (p Participant) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
