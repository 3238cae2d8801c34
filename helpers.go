package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// ============================================================
// Composite Key Prefixes
// ============================================================
// These prefixes are used to create composite keys in the Fabric
// world state, enabling efficient range queries and lookups.

const (
	// KeyPrefixRole is the prefix for role directory entries: ROLE~{principal}
	KeyPrefixRole = "ROLE"
	// KeyPrefixBuilding is the prefix for building records: BUILDING~{buildingId}
	KeyPrefixBuilding = "BUILDING"
	// KeyPrefixUpdate is the prefix for periodic updates: UPDATE~{buildingId}~{seq}
	KeyPrefixUpdate = "UPDATE"
	// KeyPrefixTask is the prefix for maintenance tasks: TASK~{taskId}
	KeyPrefixTask = "TASK"
	// KeyPrefixTeamTaskIndex is the team-to-task lookup index: TEAMTASK~{team}~{taskId}
	KeyPrefixTeamTaskIndex = "TEAMTASK"
	// KeyPrefixClaim is the prefix for insurance claims: CLAIM~{claimId}
	KeyPrefixClaim = "CLAIM"
	// KeyPrefixBuildingClaimIndex is the building-to-claim index: BLDGCLAIM~{buildingId}~{claimId}
	KeyPrefixBuildingClaimIndex = "BLDGCLAIM"
	// KeyPrefixEvaluation is the prefix for evaluations: EVAL~{evaluator}~{team}~{seq}
	KeyPrefixEvaluation = "EVAL"
	// KeyPrefixEvaluationSeq is the per-pair evaluation counter: EVALSEQ~{evaluator}~{team}
	KeyPrefixEvaluationSeq = "EVALSEQ"
	// KeyPrefixReputation is the prefix for team reputation state: REPUTATION~{team}
	KeyPrefixReputation = "REPUTATION"
	// KeyPrefixEvaluationBlock is the dispute suppression flag: EVALBLOCK~{team}~{evaluator}
	KeyPrefixEvaluationBlock = "EVALBLOCK"
)

// Plain (non-composite) keys for singleton state.
const (
	// KeyAuthority holds the principal id of the regulatory authority.
	KeyAuthority = "AUTHORITY"
	// KeyTaskSeq holds the monotonic task id counter.
	KeyTaskSeq = "TASKSEQ"
	// KeyClaimSeq holds the monotonic claim id counter.
	KeyClaimSeq = "CLAIMSEQ"
)

// ============================================================
// Composite Key Helpers
// ============================================================

// createRoleKey creates a composite key for a role directory entry.
func createRoleKey(ctx contractapi.TransactionContextInterface, principal string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixRole, []string{principal})
}

// createBuildingKey creates a composite key for a building record.
func createBuildingKey(ctx contractapi.TransactionContextInterface, buildingID string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixBuilding, []string{buildingID})
}

// createUpdateKey creates a composite key for a periodic update, indexed
// by building and zero-padded sequence so range queries return the log
// in append order.
func createUpdateKey(ctx contractapi.TransactionContextInterface, buildingID string, seq uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixUpdate, []string{buildingID, padSeq(seq)})
}

// createTaskKey creates a composite key for a maintenance task.
func createTaskKey(ctx contractapi.TransactionContextInterface, taskID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixTask, []string{padSeq(taskID)})
}

// createTeamTaskIndexKey creates a composite key for the team-to-task index.
func createTeamTaskIndexKey(ctx contractapi.TransactionContextInterface, team string, taskID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixTeamTaskIndex, []string{team, padSeq(taskID)})
}

// createClaimKey creates a composite key for an insurance claim.
func createClaimKey(ctx contractapi.TransactionContextInterface, claimID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixClaim, []string{padSeq(claimID)})
}

// createBuildingClaimIndexKey creates a composite key for the
// building-to-claim index.
func createBuildingClaimIndexKey(ctx contractapi.TransactionContextInterface, buildingID string, claimID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixBuildingClaimIndex, []string{buildingID, padSeq(claimID)})
}

// createEvaluationKey creates a composite key for one evaluation in the
// append-only (evaluator, team) history.
func createEvaluationKey(ctx contractapi.TransactionContextInterface, evaluator, team string, seq uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixEvaluation, []string{evaluator, team, padSeq(seq)})
}

// createEvaluationSeqKey creates a composite key for the per-pair
// evaluation counter.
func createEvaluationSeqKey(ctx contractapi.TransactionContextInterface, evaluator, team string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixEvaluationSeq, []string{evaluator, team})
}

// createReputationKey creates a composite key for a team's reputation state.
func createReputationKey(ctx contractapi.TransactionContextInterface, team string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixReputation, []string{team})
}

// createEvaluationBlockKey creates a composite key for the (team, evaluator)
// dispute suppression flag. Keyed team-first so a team's active suppressions
// can be range-queried.
func createEvaluationBlockKey(ctx contractapi.TransactionContextInterface, team, evaluator string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(KeyPrefixEvaluationBlock, []string{team, evaluator})
}

// padSeq zero-pads a sequence number so lexicographic key order matches
// numeric order in range queries.
func padSeq(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

// ============================================================
// Caller Identity & Authority
// ============================================================

// callerID extracts the invoking principal's unique identity from the
// client certificate. This id is the principal for every authorization
// decision and audit field.
func callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	id, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "", fmt.Errorf("UNAUTHORIZED: failed to read caller identity: %v", err)
	}
	if id == "" {
		return "", fmt.Errorf("UNAUTHORIZED: caller has no identity")
	}
	return id, nil
}

// getAuthority returns the designated regulatory authority principal,
// or the empty string if Bootstrap has not run.
func getAuthority(ctx contractapi.TransactionContextInterface) (string, error) {
	raw, err := ctx.GetStub().GetState(KeyAuthority)
	if err != nil {
		return "", fmt.Errorf("failed to read authority: %v", err)
	}
	return string(raw), nil
}

// requireAuthority verifies that the caller is the regulatory authority
// and returns the caller principal.
func requireAuthority(ctx contractapi.TransactionContextInterface) (string, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	authority, err := getAuthority(ctx)
	if err != nil {
		return "", err
	}
	if authority == "" || caller != authority {
		return "", fmt.Errorf("UNAUTHORIZED: caller is not the regulatory authority")
	}
	return caller, nil
}

// ============================================================
// Role Directory Reads
// ============================================================
// The role directory is ledger state owned by IdentityContract. Every
// other contract consults it through these read-only helpers and never
// writes it.

// getRoleRecord returns the directory entry for a principal, or nil if
// the principal has never been admitted.
func getRoleRecord(ctx contractapi.TransactionContextInterface, principal string) (*RoleRecord, error) {
	roleKey, err := createRoleKey(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to create role key: %v", err)
	}
	raw, err := ctx.GetStub().GetState(roleKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read role directory: %v", err)
	}
	if raw == nil {
		return nil, nil
	}
	var record RoleRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role record: %v", err)
	}
	return &record, nil
}

// hasRole reports whether the principal currently holds the given role.
func hasRole(ctx contractapi.TransactionContextInterface, principal string, role Role) (bool, error) {
	record, err := getRoleRecord(ctx, principal)
	if err != nil {
		return false, err
	}
	return record != nil && record.Role == role, nil
}

// requireCallerRole verifies that the caller holds at least one of the
// allowed roles and returns the caller principal.
func requireCallerRole(ctx contractapi.TransactionContextInterface, allowedRoles ...Role) (string, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	record, err := getRoleRecord(ctx, caller)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("UNAUTHORIZED: caller holds no role")
	}
	for _, allowed := range allowedRoles {
		if record.Role == allowed {
			return caller, nil
		}
	}
	return "", fmt.Errorf("UNAUTHORIZED: required one of %v, caller holds '%s'", allowedRoles, record.Role)
}

// ============================================================
// Monotonic Sequence Counters
// ============================================================

// nextSequence increments and returns the counter stored under key.
// Counters start at 1, only move forward, and are settable through no
// other path, so allocated ids are never reused.
func nextSequence(ctx contractapi.TransactionContextInterface, key string) (uint64, error) {
	raw, err := ctx.GetStub().GetState(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %v", key, err)
	}
	var current uint64
	if raw != nil {
		current, err = strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse sequence %s: %v", key, err)
		}
	}
	next := current + 1
	if err := ctx.GetStub().PutState(key, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %v", key, err)
	}
	return next, nil
}

// ============================================================
// Shared Record Loaders
// ============================================================
// Narrow read capabilities consumed across contract boundaries. Workflow
// engines check building existence here; only AssetRegistryContract
// writes building state.

// getBuildingRecord returns the building record, or nil if no initial
// snapshot has been registered.
func getBuildingRecord(ctx contractapi.TransactionContextInterface, buildingID string) (*BuildingRecord, error) {
	buildingKey, err := createBuildingKey(ctx, buildingID)
	if err != nil {
		return nil, fmt.Errorf("failed to create building key: %v", err)
	}
	raw, err := ctx.GetStub().GetState(buildingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read building record: %v", err)
	}
	if raw == nil {
		return nil, nil
	}
	var record BuildingRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal building record: %v", err)
	}
	return &record, nil
}

// buildingExists reports whether an initial snapshot exists for buildingID.
func buildingExists(ctx contractapi.TransactionContextInterface, buildingID string) (bool, error) {
	record, err := getBuildingRecord(ctx, buildingID)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}
