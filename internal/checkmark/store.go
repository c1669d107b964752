package checkmark

import (
	"context"

	"github.com/mind-engage/checkmark/internal/db"
)

// Store is the persistence the checkmark service needs.
type Store interface {
	OverrideSource

	// InTx runs fn with a Store bound to one transaction.
	InTx(ctx context.Context, fn func(Store) error) error
	// AfterCommit defers f until the active transaction has committed.
	AfterCommit(f func())
	// Querier exposes the active handle so sibling stores join the transaction.
	Querier() db.Querier

	InsertCheckmark(ctx context.Context, c *Checkmark) error
	UpdateCheckmark(ctx context.Context, c *Checkmark) error
	GetCheckmark(ctx context.Context, id int64) (Checkmark, error)
	ListCheckmarksByCourse(ctx context.Context, courseID int64) ([]Checkmark, error)
	ListCheckmarks(ctx context.Context) ([]Checkmark, error)
	DeleteCheckmark(ctx context.Context, id int64) error

	ListExamples(ctx context.Context, checkmarkID int64) ([]Example, error)
	InsertExample(ctx context.Context, e *Example) error
	UpdateExample(ctx context.Context, e Example) error
	DeleteExample(ctx context.Context, id int64) error

	GetSubmission(ctx context.Context, checkmarkID, userID int64) (*Submission, error)
	ListSubmissions(ctx context.Context, checkmarkID int64, userIDs []int64) (map[int64]Submission, error)
	CreateSubmission(ctx context.Context, sub *Submission) error
	TouchSubmission(ctx context.Context, id, t int64) error
	SetCheck(ctx context.Context, submissionID, exampleID int64, st State) error
	DeleteSubmissions(ctx context.Context, checkmarkID int64) error

	GetFeedback(ctx context.Context, checkmarkID, userID int64) (*Feedback, error)
	ListFeedbacks(ctx context.Context, checkmarkID int64) ([]Feedback, error)
	UpsertFeedback(ctx context.Context, f *Feedback) error
	ListUnmailedFeedback(ctx context.Context, modifiedBefore int64) ([]Feedback, error)
	MarkMailed(ctx context.Context, feedbackID int64) error
	DeleteFeedbacks(ctx context.Context, checkmarkID int64) error

	GetOverride(ctx context.Context, id int64) (Override, error)
	ListOverrides(ctx context.Context, checkmarkID int64, groups bool) ([]Override, error)
	InsertOverride(ctx context.Context, o *Override) error
	UpdateOverride(ctx context.Context, o Override) error
	DeleteOverride(ctx context.Context, id int64) error
	DeleteOverrides(ctx context.Context, checkmarkID int64) error
	MaxGroupPriority(ctx context.Context, checkmarkID int64) (int, error)
	SetGroupPriority(ctx context.Context, id int64, p int) error

	GetParticipant(ctx context.Context, userID int64) (Participant, error)
	ListParticipants(ctx context.Context, courseID, groupID int64) ([]Participant, error)
	EnrolmentRole(ctx context.Context, courseID, userID int64) (string, error)
	UserCourses(ctx context.Context, userID int64) ([]int64, error)
	UserGroups(ctx context.Context, courseID, userID int64) ([]int64, error)
	GroupMembers(ctx context.Context, groupID int64) ([]int64, error)
	GroupCourse(ctx context.Context, groupID int64) (int64, error)
}
