package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a transfer request.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusAccepted        Status = "ACCEPTED"
	StatusCourierAssigned Status = "COURIER_ASSIGNED"
	StatusInTransit       Status = "IN_TRANSIT"
	StatusDelivered       Status = "DELIVERED"
	StatusCompleted       Status = "COMPLETED"
	StatusDeliveryFailed  Status = "DELIVERY_FAILED"
	StatusReceptionIssues Status = "RECEPTION_ISSUES"
	StatusCancelled       Status = "CANCELLED"
)

// Purpose declares why the stock is needed; CLIENT_PRESENT requests (a
// customer waiting in store) are prioritized ahead of RESTOCK in every queue.
type Purpose string

const (
	PurposeClientPresent Purpose = "CLIENT_PRESENT"
	PurposeRestock       Purpose = "RESTOCK"
)

// PickupType declares how the goods leave the source location.
type PickupType string

const (
	PickupCourier PickupType = "COURIER"
	PickupSelf    PickupType = "SELF"
)

// validTransitions defines the allowed status state machine. Every transition
// attempt is validated against this table; nothing mutates status directly.
var validTransitions = map[Status][]Status{
	StatusPending:         {StatusAccepted, StatusCancelled},
	StatusAccepted:        {StatusCourierAssigned, StatusCancelled},
	StatusCourierAssigned: {StatusInTransit},
	StatusInTransit:       {StatusDelivered, StatusDeliveryFailed},
	StatusDelivered:       {StatusCompleted, StatusReceptionIssues},
	StatusDeliveryFailed:  {StatusCancelled},
	StatusCompleted:       {},
	StatusReceptionIssues: {},
	StatusCancelled:       {},
}

// CanTransition reports whether the state machine permits moving from
// current to next.
func CanTransition(current, next Status) bool {
	for _, allowed := range validTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}

// TransferRequest is one ask to move a quantity of one product/size from a
// source location to a destination location. Each nullable timestamp is set
// exactly once, by the transition that owns it.
type TransferRequest struct {
	ID            uuid.UUID `json:"id"`
	RequesterID   uuid.UUID `json:"requester_id"`
	SourceID      uuid.UUID `json:"source_location_id"`
	DestinationID uuid.UUID `json:"destination_location_id"`

	ReferenceCode   string     `json:"reference_code"`
	Brand           string     `json:"brand,omitempty"`
	Model           string     `json:"model,omitempty"`
	Size            string     `json:"size"`
	Quantity        int        `json:"quantity"`
	Purpose         Purpose    `json:"purpose"`
	PickupType      PickupType `json:"pickup_type"`
	DestinationType string     `json:"destination_type,omitempty"`

	Status            Status     `json:"status"`
	WarehouseKeeperID *uuid.UUID `json:"warehouse_keeper_id,omitempty"`
	CourierID         *uuid.UUID `json:"courier_id,omitempty"`

	RequestedAt          time.Time  `json:"requested_at"`
	AcceptedAt           *time.Time `json:"accepted_at,omitempty"`
	CourierAcceptedAt    *time.Time `json:"courier_accepted_at,omitempty"`
	PickedUpAt           *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt          *time.Time `json:"delivered_at,omitempty"`
	ConfirmedReceptionAt *time.Time `json:"confirmed_reception_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`

	ReceivedQuantity       *int   `json:"received_quantity,omitempty"`
	EstimatedPickupMinutes *int   `json:"estimated_pickup_minutes,omitempty"`
	RequestNotes           string `json:"request_notes,omitempty"`
	WarehouseNotes         string `json:"warehouse_notes,omitempty"`
	CourierNotes           string `json:"courier_notes,omitempty"`
	ReceptionNotes         string `json:"reception_notes,omitempty"`
	CancellationReason     string `json:"cancellation_reason,omitempty"`

	// HandOffChangeID references the inventory change written at hand-off,
	// so a failed delivery can be reversed against the exact record.
	HandOffChangeID *uuid.UUID `json:"hand_off_change_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransportIncident is an append-only problem report filed by the assigned
// courier. It never transitions the transfer or touches inventory.
type TransportIncident struct {
	ID          uuid.UUID `json:"id"`
	TransferID  uuid.UUID `json:"transfer_id"`
	ReporterID  uuid.UUID `json:"reporter_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Resolved    bool      `json:"resolved"`
	ReportedAt  time.Time `json:"reported_at"`
}

// CreateTransferRequest is the payload for opening a transfer.
type CreateTransferRequest struct {
	SourceLocationID string `json:"source_location_id"`
	ReferenceCode    string `json:"reference_code"`
	Brand            string `json:"brand,omitempty"`
	Model            string `json:"model,omitempty"`
	Size             string `json:"size"`
	Quantity         int    `json:"quantity"`
	Purpose          string `json:"purpose"`
	PickupType       string `json:"pickup_type,omitempty"`
	DestinationType  string `json:"destination_type,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// AcceptRequest is the warehouse keeper's decision on a pending transfer.
type AcceptRequest struct {
	Accepted bool   `json:"accepted"`
	Notes    string `json:"notes,omitempty"`
}

// ClaimRequest is a courier's bid to take an accepted transfer.
type ClaimRequest struct {
	EstimatedPickupMinutes int    `json:"estimated_pickup_minutes,omitempty"`
	Notes                  string `json:"notes,omitempty"`
}

// HandOffRequest is the warehouse keeper's record of physically giving the
// goods to the assigned courier.
type HandOffRequest struct {
	Successful bool   `json:"successful"`
	Notes      string `json:"notes,omitempty"`
}

// PickupRequest is the courier's confirmation of pickup.
type PickupRequest struct {
	Notes string `json:"notes,omitempty"`
}

// DeliveryRequest is the courier's report of the delivery outcome.
type DeliveryRequest struct {
	Successful bool   `json:"successful"`
	Notes      string `json:"notes,omitempty"`
}

// ReceptionRequest is the requester's confirmation that goods arrived.
type ReceptionRequest struct {
	ReceivedQuantity int    `json:"received_quantity"`
	ConditionOK      bool   `json:"condition_ok"`
	Notes            string `json:"notes,omitempty"`
}

// CancelRequest is the requester's voluntary cancellation.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// IncidentRequest is the payload for reporting a transport incident.
type IncidentRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}
