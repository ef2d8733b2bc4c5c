package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type BugStatus string

const (
	StatusOpen        BugStatus = "open"
	StatusInProgress  BugStatus = "in-progress"
	StatusResolved    BugStatus = "resolved"
	StatusPendingTest BugStatus = "pending-test"
	StatusClosed      BugStatus = "closed"
)

func (s BugStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusPendingTest, StatusClosed:
		return true
	}
	return false
}

type Decision string

const (
	DecisionFixed      Decision = "fixed"
	DecisionRegression Decision = "regression"
	DecisionNotFixed   Decision = "not-fixed"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionFixed, DecisionRegression, DecisionNotFixed:
		return true
	}
	return false
}

// ActorRef identifies the user performing a mutation. The name rides along so
// history entries stay readable without a join.
type ActorRef struct {
	ID   uuid.UUID
	Name string
}

// StatusChange is one entry of the permanent audit log. Entries are only ever
// appended, never edited or removed.
type StatusChange struct {
	Status        BugStatus `json:"status"`
	ChangedBy     uuid.UUID `json:"changedBy"`
	ChangedByName string    `json:"changedByName,omitempty"`
	ChangedAt     time.Time `json:"changedAt"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// TesterDecision is the reporter's verdict on a bug an admin marked resolved.
type TesterDecision struct {
	Decision  Decision  `json:"decision"`
	Comment   string    `json:"comment"`
	DecidedAt time.Time `json:"decidedAt"`
}

// BugReport is the aggregate root of the status workflow. Status history,
// comments and the tester decision are embedded JSONB columns so a status
// change and its audit entry land in one row write.
type BugReport struct {
	ID               uuid.UUID                         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title            string                            `gorm:"not null;column:title" json:"title"`
	Description      string                            `gorm:"not null;column:description" json:"description"`
	StepsToReproduce string                            `gorm:"not null;column:steps_to_reproduce" json:"stepsToReproduce"`
	ExpectedBehavior string                            `gorm:"not null;column:expected_behavior" json:"expectedBehavior"`
	ActualBehavior   string                            `gorm:"not null;column:actual_behavior" json:"actualBehavior"`
	Severity         Severity                          `gorm:"not null;column:severity" json:"severity"`
	Status           BugStatus                         `gorm:"not null;default:open;index;column:status" json:"status"`
	ApplicationID    uuid.UUID                         `gorm:"type:uuid;not null;index;column:application_id" json:"applicationId"`
	ReportedBy       uuid.UUID                         `gorm:"type:uuid;not null;index;column:reported_by" json:"reportedBy"`
	Environment      string                            `gorm:"not null;column:environment" json:"environment"`
	Screenshots      datatypes.JSONSlice[string]       `gorm:"column:screenshots" json:"screenshots"`
	ConsoleErrors    string                            `gorm:"column:console_errors" json:"consoleErrors,omitempty"`
	Queries          string                            `gorm:"column:queries" json:"queries,omitempty"`
	StatusHistory    datatypes.JSONSlice[StatusChange] `gorm:"column:status_history" json:"statusHistory"`
	Comments         datatypes.JSONSlice[Comment]      `gorm:"column:comments" json:"comments"`
	TesterDecision   *TesterDecision                   `gorm:"column:tester_decision;serializer:json" json:"testerDecision,omitempty"`
	IsRegression     bool                              `gorm:"not null;default:false;column:is_regression" json:"isRegression"`
	CreatedAt        time.Time                         `gorm:"not null;default:now();index" json:"createdAt"`
	UpdatedAt        time.Time                         `gorm:"not null;default:now()" json:"updatedAt"`

	Application *Application `gorm:"foreignKey:ApplicationID" json:"application,omitempty"`
	Reporter    *User        `gorm:"foreignKey:ReportedBy" json:"reporter,omitempty"`
}

func (BugReport) TableName() string {
	return "bug_reports"
}

// Open initializes the status machine: status=open plus the creation entry of
// the audit log. Must be called exactly once, before first save.
func (b *BugReport) Open(actor ActorRef, now time.Time) {
	b.Status = StatusOpen
	b.StatusHistory = datatypes.JSONSlice[StatusChange]{{
		Status:        StatusOpen,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		ChangedAt:     now,
	}}
}

// ApplyStatus moves the report to newStatus and appends the audit entry.
// The single enforced transition guard: pending-test is reachable only from
// resolved. Everything else, including reopening a closed report, is allowed.
func (b *BugReport) ApplyStatus(newStatus BugStatus, actor ActorRef, now time.Time) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, newStatus)
	}
	if newStatus == StatusPendingTest && b.Status != StatusResolved {
		return fmt.Errorf("%w: pending-test is only reachable from resolved (current %q)", ErrInvalidTransition, b.Status)
	}
	b.Status = newStatus
	b.StatusHistory = append(b.StatusHistory, StatusChange{
		Status:        newStatus,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		ChangedAt:     now,
	})
	return nil
}

// ApplyTesterDecision records the reporter's verdict on a pending-test report
// and derives the follow-up status: fixed closes the report, anything else
// reopens it. A regression verdict additionally flags the report.
func (b *BugReport) ApplyTesterDecision(decision Decision, comment string, actor ActorRef, now time.Time) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return fmt.Errorf("%w: decision comment is required", ErrInvalidInput)
	}
	if !decision.Valid() {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}
	if b.Status != StatusPendingTest {
		return fmt.Errorf("%w: tester decision requires pending-test (current %q)", ErrInvalidState, b.Status)
	}
	if actor.ID != b.ReportedBy {
		return fmt.Errorf("%w: only the reporting tester may decide", ErrForbidden)
	}

	b.TesterDecision = &TesterDecision{
		Decision:  decision,
		Comment:   comment,
		DecidedAt: now,
	}

	newStatus := StatusOpen
	if decision == DecisionFixed {
		newStatus = StatusClosed
	} else if decision == DecisionRegression {
		b.IsRegression = true
	}

	b.Status = newStatus
	b.StatusHistory = append(b.StatusHistory, StatusChange{
		Status:        newStatus,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		ChangedAt:     now,
	})
	return nil
}

// AppendComment adds an immutable comment. Comments are never edited or
// removed.
func (b *BugReport) AppendComment(text string, actor ActorRef, now time.Time) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, fmt.Errorf("%w: comment cannot be empty", ErrInvalidInput)
	}
	comment := Comment{
		ID:        uuid.New(),
		UserID:    actor.ID,
		UserName:  actor.Name,
		Text:      text,
		CreatedAt: now,
	}
	b.Comments = append(b.Comments, comment)
	return comment, nil
}

// LastStatusChange returns the most recent audit entry. The report invariant
// says it always exists and matches Status.
func (b *BugReport) LastStatusChange() (StatusChange, bool) {
	if len(b.StatusHistory) == 0 {
		return StatusChange{}, false
	}
	return b.StatusHistory[len(b.StatusHistory)-1], true
}
