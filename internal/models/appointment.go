// internal/models/appointment.go
package models

import "time"

// Status is the lifecycle label stored on an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCancelled:
		return true
	}
	return false
}

// Purpose is what an appointment form is for.
type Purpose string

const (
	PurposeCreate   Purpose = "create"
	PurposeSchedule Purpose = "schedule"
	PurposeCancel   Purpose = "cancel"
)

func ParsePurpose(s string) (Purpose, bool) {
	p := Purpose(s)
	switch p {
	case PurposeCreate, PurposeSchedule, PurposeCancel:
		return p, true
	}
	return "", false
}

// StatusForPurpose maps a form purpose to the status it writes. Unknown
// purposes have no status.
func StatusForPurpose(p Purpose) Status {
	switch p {
	case PurposeCreate:
		return StatusPending
	case PurposeSchedule:
		return StatusScheduled
	case PurposeCancel:
		return StatusCancelled
	}
	return ""
}

// ButtonLabel is the submit caption for the purpose.
func (p Purpose) ButtonLabel() string {
	switch p {
	case PurposeSchedule:
		return "Schedule Appointment"
	case PurposeCancel:
		return "Cancel Appointment"
	default:
		return "Create Appointment"
	}
}

type Appointment struct {
	ID                 string    `json:"$id"`
	UserID             string    `json:"userId"`
	PatientID          string    `json:"patient"`
	PrimaryPhysician   string    `json:"primaryPhysician"`
	Schedule           time.Time `json:"schedule"`
	Reason             string    `json:"reason"`
	Note               string    `json:"note,omitempty"`
	Status             Status    `json:"status"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time `json:"$createdAt"`
	UpdatedAt          time.Time `json:"$updatedAt"`

	// Patient is resolved for listings. Appointment documents store only PatientID.
	Patient *Patient `json:"patientRecord,omitempty"`
}

type CreateAppointmentParams struct {
	UserID           string    `json:"userId"`
	PatientID        string    `json:"patient"`
	PrimaryPhysician string    `json:"primaryPhysician"`
	Schedule         time.Time `json:"schedule"`
	Reason           string    `json:"reason"`
	Note             string    `json:"note,omitempty"`
	Status           Status    `json:"status"`
}

// AppointmentChanges holds the fields a schedule or cancel form may change.
type AppointmentChanges struct {
	PrimaryPhysician   string    `json:"primaryPhysician"`
	Schedule           time.Time `json:"schedule"`
	Status             Status    `json:"status"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
}

type UpdateAppointmentParams struct {
	AppointmentID string             `json:"appointmentId"`
	UserID        string             `json:"userId"`
	TimeZone      string             `json:"timeZone"`
	Purpose       Purpose            `json:"type"`
	Appointment   AppointmentChanges `json:"appointment"`
}

// AppointmentList is the admin dashboard view over recent appointments.
type AppointmentList struct {
	TotalCount     int           `json:"totalCount"`
	ScheduledCount int           `json:"scheduledCount"`
	PendingCount   int           `json:"pendingCount"`
	CancelledCount int           `json:"cancelledCount"`
	Documents      []Appointment `json:"documents"`
}

// NewAppointmentList counts documents by status.
func NewAppointmentList(docs []Appointment) *AppointmentList {
	list := &AppointmentList{TotalCount: len(docs), Documents: docs}
	for _, a := range docs {
		switch a.Status {
		case StatusScheduled:
			list.ScheduledCount++
		case StatusPending:
			list.PendingCount++
		case StatusCancelled:
			list.CancelledCount++
		}
	}
	return list
}
