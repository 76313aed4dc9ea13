// Package models defines the agenda, link and route records exchanged with
// the remote stores and held in the local cache.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar-date format used by the agenda backend.
// Visits are scheduled to a date and a period, never a time of day.
const DateLayout = "2006-01-02"

// VisitStatus is the lifecycle state of an agenda entry.
type VisitStatus int

const (
	StatusScheduled VisitStatus = 1
	StatusConfirmed VisitStatus = 2
	StatusCompleted VisitStatus = 3
	StatusFinalized VisitStatus = 4
	StatusCanceled  VisitStatus = 5
	StatusInactive  VisitStatus = 6
	StatusPostponed VisitStatus = 7
)

var statusLabels = map[VisitStatus]string{
	StatusScheduled: "scheduled",
	StatusConfirmed: "confirmed",
	StatusCompleted: "completed",
	StatusFinalized: "finalized",
	StatusCanceled:  "canceled",
	StatusInactive:  "inactive",
	StatusPostponed: "postponed",
}

func (s VisitStatus) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Valid reports whether the status is one of the seven known codes.
func (s VisitStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal reports whether no transition leaves the status.
func (s VisitStatus) Terminal() bool {
	return s == StatusFinalized || s == StatusCanceled || s == StatusInactive
}

// Period is the part of the day a visit occupies.
type Period int

const (
	PeriodMorning   Period = 0
	PeriodAfternoon Period = 1
	PeriodFullDay   Period = 2
)

var periodLabels = map[Period]string{
	PeriodMorning:   "morning",
	PeriodAfternoon: "afternoon",
	PeriodFullDay:   "full day",
}

func (p Period) String() string {
	if label, ok := periodLabels[p]; ok {
		return label
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// Valid reports whether the period is one of the three known values.
func (p Period) Valid() bool {
	_, ok := periodLabels[p]
	return ok
}

// VisitTypeLabels is the closed set of visit category codes.
var VisitTypeLabels = map[int]string{
	1:  "first contact",
	2:  "product presentation",
	3:  "sample delivery",
	4:  "follow-up",
	5:  "prescription review",
	6:  "contract signing",
	7:  "collection",
	8:  "training",
	9:  "event invitation",
	10: "relationship",
	11: "prospecting",
	12: "other",
}

// ValidVisitType reports whether code is a known visit category.
// Zero is accepted as "not informed".
func ValidVisitType(code int) bool {
	if code == 0 {
		return true
	}
	_, ok := VisitTypeLabels[code]
	return ok
}

// AgendaEntry is a visit booking as the remote agenda store understands it.
// While an entry exists only in the local cache its ID is zero and LocalID
// carries a placeholder; such an entry is never authoritative for remote
// collaborators until the wrapping record reports salvaNaApi=true.
//
// JSON field names follow the backend's wire contract.
type AgendaEntry struct {
	ID             int64       `json:"id,omitempty"`
	LocalID        string      `json:"idLocal,omitempty"`
	ProfessionalID int64       `json:"idPrescritor"`
	LocationID     *int64      `json:"idEndereco,omitempty"` // nil: professional has no fixed location
	Date           string      `json:"data"`
	Period         Period      `json:"periodo"`
	Description    string      `json:"descricao,omitempty"`
	Product        string      `json:"produto,omitempty"`
	Type           int         `json:"tipo,omitempty"`
	Status         VisitStatus `json:"status"`
	Active         bool        `json:"ativo"`
	Printed        bool        `json:"impresso,omitempty"`
	PrintedAt      *time.Time  `json:"impressoEm,omitempty"`
}

// Key returns the identifier used to address the entry locally: the server
// id when one was assigned, otherwise the local placeholder.
func (e *AgendaEntry) Key() string {
	if e.ID != 0 {
		return strconv.FormatInt(e.ID, 10)
	}
	return e.LocalID
}

// Synced reports whether the entry carries a server-assigned id.
func (e *AgendaEntry) Synced() bool {
	return e.ID != 0
}

// ParsedDate parses the scheduling date.
func (e *AgendaEntry) ParsedDate() (time.Time, error) {
	return time.Parse(DateLayout, e.Date)
}

// Validate checks the fields a create or rewrite must carry.
func (e *AgendaEntry) Validate() error {
	if e.ProfessionalID <= 0 {
		return fmt.Errorf("agenda entry: professional id is required")
	}
	if _, err := e.ParsedDate(); err != nil {
		return fmt.Errorf("agenda entry: bad date %q: %w", e.Date, err)
	}
	if !e.Period.Valid() {
		return fmt.Errorf("agenda entry: bad period %d", e.Period)
	}
	if !ValidVisitType(e.Type) {
		return fmt.Errorf("agenda entry: bad visit type %d", e.Type)
	}
	return nil
}

// CachedAgendaRecord wraps an AgendaEntry with the bookkeeping the local
// cache needs: whether the remote store durably accepted it, when it was
// created locally and the last sync failure reason, if any. Records are
// never removed automatically; only an explicit user action or nothing at
// all — a successfully synced record stays behind as an audit copy.
type CachedAgendaRecord struct {
	Entry      AgendaEntry `json:"agenda"`
	SavedToAPI bool        `json:"salvaNaApi"`
	CreatedAt  time.Time   `json:"dataCriacao"`
	SyncError  string      `json:"erro,omitempty"`
}
