package store

import "time"

// Pilot is one crew member tracked for certification compliance
type Pilot struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EmployeeNumber string `json:"employeeNumber"`
	FleetID        string `json:"fleetId"`
	Base           string `json:"base"`
	Active         bool   `json:"active"`
}

// CheckStatus is the compliance state of a single certification check
type CheckStatus string

const (
	CheckCurrent  CheckStatus = "current"
	CheckExpiring CheckStatus = "expiring"
	CheckOverdue  CheckStatus = "overdue"
)

// CertificationCheck is one recurrent check (line check, medical, recurrent
// training) held by a pilot
type CertificationCheck struct {
	ID          string      `json:"id"`
	PilotID     string      `json:"pilotId"`
	CheckType   string      `json:"checkType"`
	CompletedAt time.Time   `json:"completedAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Status      CheckStatus `json:"status"`
}

// ComplianceRecord is one category-level compliance rollup for a pilot
type ComplianceRecord struct {
	ID        string    `json:"id"`
	PilotID   string    `json:"pilotId"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ComplianceSummary is the fleet-wide rollup shown on the dashboard header
type ComplianceSummary struct {
	TotalPilots     int       `json:"totalPilots"`
	CompliantPilots int       `json:"compliantPilots"`
	ExpiringChecks  int       `json:"expiringChecks"`
	OverdueChecks   int       `json:"overdueChecks"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// pilotChecks is the wire shape of one pilot's checks in a batch response
type pilotChecks struct {
	PilotID string               `json:"pilotId"`
	Checks  []CertificationCheck `json:"checks"`
}

// pilotRecords is the wire shape of one pilot's compliance records in a batch
// response
type pilotRecords struct {
	PilotID string             `json:"pilotId"`
	Records []ComplianceRecord `json:"records"`
}
