package main

// ============================================================
// Roles: closed set of capability classes
// ============================================================

// Role is the capability class granted to a principal by the regulatory
// authority. A principal holds at most one role at a time; the role gates
// which chaincode functions the principal may invoke.
type Role string

const (
	RoleBuildingOwner       Role = "BUILDING_OWNER"
	RoleConstructionCompany Role = "CONSTRUCTION_COMPANY"
	RoleFacilityManager     Role = "FACILITY_MANAGER"
	RoleMaintenanceTeam     Role = "MAINTENANCE_TEAM"
	RoleInsuranceCompany    Role = "INSURANCE_COMPANY"
)

// Valid reports whether r is one of the five recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuildingOwner, RoleConstructionCompany, RoleFacilityManager,
		RoleMaintenanceTeam, RoleInsuranceCompany:
		return true
	}
	return false
}

// RoleRecord is the role directory entry for a single principal.
// Version starts at 1 on admission and increments on every reassignment
// to a different role.
type RoleRecord struct {
	DocType    string `json:"docType"`
	Principal  string `json:"principal"`
	Role       Role   `json:"role"`
	Version    uint64 `json:"version"`
	AssignedBy string `json:"assignedBy"`
	FabricTxID string `json:"fabricTxId"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// RoleInfo is the total-read view of a principal's directory entry.
// Exists is false (with zero role and version) for unknown principals.
type RoleInfo struct {
	Role    Role   `json:"role"`
	Version uint64 `json:"version"`
	Exists  bool   `json:"exists"`
}

// ============================================================
// BuildingRecord: initial snapshot plus versioned update log
// ============================================================

// BuildingRecord is the immutable initial snapshot of a building, created
// exactly once by a construction company. Periodic updates are stored
// separately under UPDATE~{buildingId}~{seq}; UpdateCount tracks the last
// appended sequence number.
type BuildingRecord struct {
	DocType           string `json:"docType"`
	BuildingID        string `json:"buildingId"`
	Specification     string `json:"specification"`
	MaintenancePeriod uint64 `json:"maintenancePeriod"`
	ContentHash       string `json:"contentHash"`
	InsuranceRef      string `json:"insuranceRef"`
	UpdateCount       uint64 `json:"updateCount"`
	FabricTxID        string `json:"fabricTxId"`
	CreatedAt         string `json:"createdAt"`
	CreatedBy         string `json:"createdBy"`
	UpdatedAt         string `json:"updatedAt"`
	UpdatedBy         string `json:"updatedBy"`
}

// PeriodicUpdate is one entry of a building's append-only update log.
// Sequence numbers are a strictly increasing run 1, 2, 3, … with no gaps.
type PeriodicUpdate struct {
	DocType     string `json:"docType"`
	BuildingID  string `json:"buildingId"`
	Sequence    uint64 `json:"sequence"`
	Timestamp   uint64 `json:"timestamp"`
	ContentHash string `json:"contentHash"`
	FabricTxID  string `json:"fabricTxId"`
	CreatedAt   string `json:"createdAt"`
	CreatedBy   string `json:"createdBy"`
}

// BuildingHistoryEntry represents a single historical state of a building
// record as returned by the Fabric history query API.
type BuildingHistoryEntry struct {
	TxID      string          `json:"txId"`
	Timestamp string          `json:"timestamp"`
	IsDelete  bool            `json:"isDelete"`
	Record    *BuildingRecord `json:"record"`
}

// ============================================================
// MaintenanceTask: per-task workflow state machine
// ============================================================

// TaskStatus is the state of a maintenance task. Legal transitions:
// IN_PROGRESS -> COMPLETED, IN_PROGRESS -> DISPUTED,
// DISPUTED -> COMPLETED, DISPUTED -> IN_PROGRESS.
type TaskStatus string

const (
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskDisputed   TaskStatus = "DISPUTED"
)

// MaintenanceTask is a unit of maintenance work assigned by a facility
// manager to a maintenance team. Task ids come from a monotonic counter
// starting at 1 and are never reused.
type MaintenanceTask struct {
	DocType       string     `json:"docType"`
	TaskID        uint64     `json:"taskId"`
	BuildingID    string     `json:"buildingId"`
	Description   string     `json:"description"`
	AssignedTeam  string     `json:"assignedTeam"`
	AssignedBy    string     `json:"assignedBy"`
	Status        TaskStatus `json:"status"`
	DisputedBy    string     `json:"disputedBy,omitempty"`
	DisputeReason string     `json:"disputeReason,omitempty"`
	FabricTxID    string     `json:"fabricTxId"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

// ============================================================
// InsuranceClaim: per-claim workflow state machine
// ============================================================

// ClaimStatus is the state of an insurance claim. Legal transitions:
// SUBMITTED -> UNDER_REVIEW (info attachment), UNDER_REVIEW -> RESOLVED
// (insurer decision), UNDER_REVIEW -> DISPUTED, DISPUTED -> RESOLVED
// (authority decision).
type ClaimStatus string

const (
	ClaimSubmitted   ClaimStatus = "SUBMITTED"
	ClaimUnderReview ClaimStatus = "UNDER_REVIEW"
	ClaimDisputed    ClaimStatus = "DISPUTED"
	ClaimResolved    ClaimStatus = "RESOLVED"
)

// InsuranceClaim is a claim filed by a building owner or facility manager
// against a building's insurance reference. DescriptionHash is an opaque
// content reference; supporting info from the maintenance team overwrites it.
type InsuranceClaim struct {
	DocType         string      `json:"docType"`
	ClaimID         uint64      `json:"claimId"`
	BuildingID      string      `json:"buildingId"`
	InsuranceRef    string      `json:"insuranceRef"`
	DescriptionHash string      `json:"descriptionHash"`
	Approved        bool        `json:"approved"`
	Status          ClaimStatus `json:"status"`
	Submitter       string      `json:"submitter"`
	DisputeReason   string      `json:"disputeReason,omitempty"`
	FabricTxID      string      `json:"fabricTxId"`
	CreatedAt       string      `json:"createdAt"`
	UpdatedAt       string      `json:"updatedAt"`
}

// ============================================================
// Evaluation & ReputationState: team scoring
// ============================================================

// Evaluation is an immutable five-score assessment of a maintenance team,
// stored in the append-only (evaluator, team) history. Each sub-score is
// bounded to [0, 100]; Weighted is the fixed-weight linear combination
// (40/20/25/10/5 basis) contributed to the running average.
type Evaluation struct {
	DocType       string `json:"docType"`
	Evaluator     string `json:"evaluator"`
	Team          string `json:"team"`
	Sequence      uint64 `json:"sequence"`
	Completion    uint64 `json:"completion"`
	Punctuality   uint64 `json:"punctuality"`
	Quality       uint64 `json:"quality"`
	Communication uint64 `json:"communication"`
	Safety        uint64 `json:"safety"`
	Weighted      uint64 `json:"weighted"`
	FabricTxID    string `json:"fabricTxId"`
	CreatedAt     string `json:"createdAt"`
}

// ReputationState is the running reputation of a maintenance team.
// Score is bounded to [0, 100] and lazily initialized to 80 on the first
// evaluation; Count is the lifetime evaluation count across all evaluators;
// Version increments on every accepted evaluation.
type ReputationState struct {
	DocType    string `json:"docType"`
	Team       string `json:"team"`
	Score      uint64 `json:"score"`
	Count      uint64 `json:"count"`
	Version    uint64 `json:"version"`
	FabricTxID string `json:"fabricTxId"`
	UpdatedAt  string `json:"updatedAt"`
}

// EvaluationBlock marks a (team, evaluator) pair whose future evaluations
// are suppressed pending authority arbitration. Stored under
// EVALBLOCK~{team}~{evaluator}; cleared by ReputationContract.ResolveDispute.
type EvaluationBlock struct {
	DocType    string `json:"docType"`
	Team       string `json:"team"`
	Evaluator  string `json:"evaluator"`
	FabricTxID string `json:"fabricTxId"`
	CreatedAt  string `json:"createdAt"`
}
