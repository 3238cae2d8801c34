package main

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// ============================================================
// Event Types: emitted by chaincode for off-chain consumers
// ============================================================

// AuthorityDesignatedEvent is emitted once, when the regulatory authority
// is recorded at bootstrap.
type AuthorityDesignatedEvent struct {
	Type       string `json:"type"`
	Authority  string `json:"authority"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// RoleEvent is emitted when a principal is admitted to the role directory
// (ROLE_ASSIGNED) or reassigned to a different role (ROLE_CHANGED).
type RoleEvent struct {
	Type       string `json:"type"`
	Principal  string `json:"principal"`
	Role       Role   `json:"role"`
	Version    uint64 `json:"version"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// InitialDataUploadedEvent is emitted when a construction company registers
// the initial snapshot of a building.
type InitialDataUploadedEvent struct {
	Type              string `json:"type"`
	BuildingID        string `json:"buildingId"`
	Specification     string `json:"specification"`
	MaintenancePeriod uint64 `json:"maintenancePeriod"`
	ContentHash       string `json:"contentHash"`
	InsuranceRef      string `json:"insuranceRef"`
	FabricTxID        string `json:"fabricTxId"`
	Timestamp         string `json:"timestamp"`
	ChannelID         string `json:"channelId"`
}

// PeriodicDataUploadedEvent is emitted when a periodic update is appended
// to a building's update log.
type PeriodicDataUploadedEvent struct {
	Type        string `json:"type"`
	BuildingID  string `json:"buildingId"`
	Sequence    uint64 `json:"sequence"`
	DataTime    uint64 `json:"dataTimestamp"`
	ContentHash string `json:"contentHash"`
	FabricTxID  string `json:"fabricTxId"`
	Timestamp   string `json:"timestamp"`
	ChannelID   string `json:"channelId"`
}

// TaskAssignedEvent is emitted when a facility manager assigns a new
// maintenance task to a team.
type TaskAssignedEvent struct {
	Type        string `json:"type"`
	TaskID      uint64 `json:"taskId"`
	BuildingID  string `json:"buildingId"`
	Description string `json:"description"`
	Team        string `json:"team"`
	Manager     string `json:"manager"`
	FabricTxID  string `json:"fabricTxId"`
	Timestamp   string `json:"timestamp"`
	ChannelID   string `json:"channelId"`
}

// TaskCompletedEvent is emitted when a task reaches COMPLETED, either by
// the assigned team or by authority arbitration.
type TaskCompletedEvent struct {
	Type       string `json:"type"`
	TaskID     uint64 `json:"taskId"`
	Team       string `json:"team"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// TaskDisputedEvent is emitted when a facility manager disputes an
// in-progress task.
type TaskDisputedEvent struct {
	Type       string `json:"type"`
	TaskID     uint64 `json:"taskId"`
	Reporter   string `json:"reporter"`
	Reason     string `json:"reason"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// ClaimSubmittedEvent is emitted when an insurance claim is filed.
type ClaimSubmittedEvent struct {
	Type            string `json:"type"`
	ClaimID         uint64 `json:"claimId"`
	BuildingID      string `json:"buildingId"`
	InsuranceRef    string `json:"insuranceRef"`
	DescriptionHash string `json:"descriptionHash"`
	FabricTxID      string `json:"fabricTxId"`
	Timestamp       string `json:"timestamp"`
	ChannelID       string `json:"channelId"`
}

// ClaimProcessedEvent is emitted when the insurer resolves a claim under
// review with an approval decision.
type ClaimProcessedEvent struct {
	Type       string `json:"type"`
	ClaimID    uint64 `json:"claimId"`
	Approved   bool   `json:"approved"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// ClaimDisputedEvent is emitted when a claim under review is disputed.
type ClaimDisputedEvent struct {
	Type       string `json:"type"`
	ClaimID    uint64 `json:"claimId"`
	Submitter  string `json:"submitter"`
	Reason     string `json:"reason"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// ClaimResolvedEvent is emitted when the authority arbitrates a disputed
// claim with a final approval decision.
type ClaimResolvedEvent struct {
	Type          string `json:"type"`
	ClaimID       uint64 `json:"claimId"`
	FinalApproval bool   `json:"finalApproval"`
	FabricTxID    string `json:"fabricTxId"`
	Timestamp     string `json:"timestamp"`
	ChannelID     string `json:"channelId"`
}

// ReputationUpdatedEvent is emitted on every accepted evaluation, carrying
// the team's new running score and version.
type ReputationUpdatedEvent struct {
	Type       string `json:"type"`
	Evaluator  string `json:"evaluator"`
	Team       string `json:"team"`
	Score      uint64 `json:"score"`
	Version    uint64 `json:"version"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// EvaluationDisputeEvent is emitted when a team disputes an evaluator
// (EVALUATION_DISPUTED) and when the authority clears the suppression
// (EVALUATION_DISPUTE_RESOLVED).
type EvaluationDisputeEvent struct {
	Type       string `json:"type"`
	Team       string `json:"team"`
	Evaluator  string `json:"evaluator"`
	FabricTxID string `json:"fabricTxId"`
	Timestamp  string `json:"timestamp"`
	ChannelID  string `json:"channelId"`
}

// ============================================================
// Event emission helper
// ============================================================

// emitEvent serialises the given event payload to JSON and sets it as a
// chaincode event on the transaction stub. Fabric delivers the event to
// subscribers only if the transaction commits, so failed operations never
// leak notifications.
func emitEvent(ctx contractapi.TransactionContextInterface, eventName string, payload interface{}) error {
	eventJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %v", eventName, err)
	}
	if err := ctx.GetStub().SetEvent(eventName, eventJSON); err != nil {
		return fmt.Errorf("failed to emit event %s: %v", eventName, err)
	}
	return nil
}
