package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// ReputationContract implements incremental reputation scoring of
// maintenance teams. Each evaluation contributes a fixed-weight linear
// combination of five bounded sub-scores to a running lifetime average;
// a team can dispute an evaluator, suppressing that evaluator's future
// submissions until the authority clears the pair.
type ReputationContract struct {
	contractapi.Contract
}

// Evaluation weights, in percent. The weighted contribution of one
// evaluation is (40c + 20p + 25q + 10m + 5s) / 100, floored.
const (
	weightCompletion    = 40
	weightPunctuality   = 20
	weightQuality       = 25
	weightCommunication = 10
	weightSafety        = 5
)

// maxScore bounds every sub-score and the running score.
const maxScore = 100

// initialScore is the lazily assigned starting score for a team's first
// evaluation; the first weighted value replaces it outright.
const initialScore = 80

// ============================================================
// EVALUATION
// ============================================================

// SubmitEvaluation records a five-score evaluation of a maintenance team
// and folds it into the team's running reputation. Callable by building
// owners, facility managers, and insurance companies, unless the
// (caller, team) pair is dispute-suppressed. Emits REPUTATION_UPDATED
// with the new score and version.
func (s *ReputationContract) SubmitEvaluation(ctx contractapi.TransactionContextInterface, team string, completion, punctuality, quality, communication, safety uint64) error {
	evaluator, err := requireCallerRole(ctx, RoleBuildingOwner, RoleFacilityManager, RoleInsuranceCompany)
	if err != nil {
		return err
	}

	isTeam, err := hasRole(ctx, team, RoleMaintenanceTeam)
	if err != nil {
		return err
	}
	if !isTeam {
		return fmt.Errorf("INVALID_TEAM: %s does not hold the MAINTENANCE_TEAM role", team)
	}

	blockKey, err := createEvaluationBlockKey(ctx, team, evaluator)
	if err != nil {
		return fmt.Errorf("failed to create evaluation block key: %v", err)
	}
	blocked, err := ctx.GetStub().GetState(blockKey)
	if err != nil {
		return fmt.Errorf("failed to read evaluation block: %v", err)
	}
	if blocked != nil {
		return fmt.Errorf("FORBIDDEN: evaluations from this evaluator are suppressed pending dispute resolution")
	}

	for _, score := range []uint64{completion, punctuality, quality, communication, safety} {
		if score > maxScore {
			return fmt.Errorf("OUT_OF_RANGE: scores must be between 0 and %d", maxScore)
		}
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	state, err := getReputationState(ctx, team)
	if err != nil {
		return err
	}
	if state == nil {
		state = &ReputationState{
			DocType: "reputationState",
			Team:    team,
			Score:   initialScore,
		}
	}

	weighted := (weightCompletion*completion + weightPunctuality*punctuality +
		weightQuality*quality + weightCommunication*communication +
		weightSafety*safety) / 100

	seqKey, err := createEvaluationSeqKey(ctx, evaluator, team)
	if err != nil {
		return fmt.Errorf("failed to create evaluation sequence key: %v", err)
	}
	seq, err := nextSequence(ctx, seqKey)
	if err != nil {
		return err
	}

	evaluation := Evaluation{
		DocType:       "evaluation",
		Evaluator:     evaluator,
		Team:          team,
		Sequence:      seq,
		Completion:    completion,
		Punctuality:   punctuality,
		Quality:       quality,
		Communication: communication,
		Safety:        safety,
		Weighted:      weighted,
		FabricTxID:    txID,
		CreatedAt:     now,
	}
	evalKey, err := createEvaluationKey(ctx, evaluator, team, seq)
	if err != nil {
		return fmt.Errorf("failed to create evaluation key: %v", err)
	}
	evalBytes, err := json.Marshal(evaluation)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation: %v", err)
	}
	if err := ctx.GetStub().PutState(evalKey, evalBytes); err != nil {
		return fmt.Errorf("failed to put evaluation: %v", err)
	}

	// Incremental lifetime average: the first evaluation replaces the
	// initial score entirely, later ones fold in with floored division.
	n := state.Count + 1
	if n == 1 {
		state.Score = weighted
	} else {
		state.Score = (state.Score*(n-1) + weighted) / n
	}
	if state.Score > maxScore {
		state.Score = maxScore
	}
	state.Count = n
	state.Version++
	state.FabricTxID = txID
	state.UpdatedAt = now

	repKey, _ := createReputationKey(ctx, team)
	stateBytes, _ := json.Marshal(state)
	if err := ctx.GetStub().PutState(repKey, stateBytes); err != nil {
		return fmt.Errorf("failed to put reputation state: %v", err)
	}

	event := ReputationUpdatedEvent{
		Type:       "REPUTATION_UPDATED",
		Evaluator:  evaluator,
		Team:       team,
		Score:      state.Score,
		Version:    state.Version,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "REPUTATION_UPDATED", event)
}

// ============================================================
// DISPUTES
// ============================================================

// DisputeEvaluation lets a maintenance team dispute an evaluator who has
// previously scored it. Future submissions from that evaluator against
// the calling team are suppressed until the authority resolves the pair;
// already recorded scores are untouched. Emits EVALUATION_DISPUTED.
func (s *ReputationContract) DisputeEvaluation(ctx contractapi.TransactionContextInterface, evaluator string) error {
	team, err := requireCallerRole(ctx, RoleMaintenanceTeam)
	if err != nil {
		return err
	}

	iterator, err := ctx.GetStub().GetStateByPartialCompositeKey(KeyPrefixEvaluation, []string{evaluator, team})
	if err != nil {
		return fmt.Errorf("failed to query evaluations: %v", err)
	}
	hasEvaluation := iterator.HasNext()
	iterator.Close()
	if !hasEvaluation {
		return fmt.Errorf("NOT_FOUND: no evaluation from %s against the calling team", evaluator)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	block := EvaluationBlock{
		DocType:    "evaluationBlock",
		Team:       team,
		Evaluator:  evaluator,
		FabricTxID: txID,
		CreatedAt:  now,
	}
	blockKey, err := createEvaluationBlockKey(ctx, team, evaluator)
	if err != nil {
		return fmt.Errorf("failed to create evaluation block key: %v", err)
	}
	blockBytes, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation block: %v", err)
	}
	if err := ctx.GetStub().PutState(blockKey, blockBytes); err != nil {
		return fmt.Errorf("failed to put evaluation block: %v", err)
	}

	event := EvaluationDisputeEvent{
		Type:       "EVALUATION_DISPUTED",
		Team:       team,
		Evaluator:  evaluator,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "EVALUATION_DISPUTED", event)
}

// ResolveDispute clears the suppression flag for a (team, evaluator)
// pair. Only the regulatory authority can call this. Emits
// EVALUATION_DISPUTE_RESOLVED.
func (s *ReputationContract) ResolveDispute(ctx contractapi.TransactionContextInterface, team, evaluator string) error {
	if _, err := requireAuthority(ctx); err != nil {
		return err
	}

	blockKey, err := createEvaluationBlockKey(ctx, team, evaluator)
	if err != nil {
		return fmt.Errorf("failed to create evaluation block key: %v", err)
	}
	blocked, err := ctx.GetStub().GetState(blockKey)
	if err != nil {
		return fmt.Errorf("failed to read evaluation block: %v", err)
	}
	if blocked == nil {
		return fmt.Errorf("NOT_FOUND: no active dispute for this (team, evaluator) pair")
	}

	if err := ctx.GetStub().DelState(blockKey); err != nil {
		return fmt.Errorf("failed to clear evaluation block: %v", err)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)

	event := EvaluationDisputeEvent{
		Type:       "EVALUATION_DISPUTE_RESOLVED",
		Team:       team,
		Evaluator:  evaluator,
		FabricTxID: ctx.GetStub().GetTxID(),
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "EVALUATION_DISPUTE_RESOLVED", event)
}

// ============================================================
// QUERIES
// ============================================================

// GetEvaluations returns the ordered evaluation history submitted by the
// evaluator against the team.
func (s *ReputationContract) GetEvaluations(ctx contractapi.TransactionContextInterface, evaluator, team string) ([]*Evaluation, error) {
	iterator, err := ctx.GetStub().GetStateByPartialCompositeKey(KeyPrefixEvaluation, []string{evaluator, team})
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %v", err)
	}
	defer iterator.Close()

	var evaluations []*Evaluation
	for iterator.HasNext() {
		kv, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate evaluations: %v", err)
		}
		var evaluation Evaluation
		if err := json.Unmarshal(kv.Value, &evaluation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluation: %v", err)
		}
		evaluations = append(evaluations, &evaluation)
	}
	return evaluations, nil
}

// GetReputation returns the running reputation state of a team.
func (s *ReputationContract) GetReputation(ctx contractapi.TransactionContextInterface, team string) (*ReputationState, error) {
	state, err := getReputationState(ctx, team)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("NOT_FOUND: team %s has no recorded evaluations", team)
	}
	return state, nil
}

// getReputationState loads a team's reputation state, or nil if the team
// has never been evaluated.
func getReputationState(ctx contractapi.TransactionContextInterface, team string) (*ReputationState, error) {
	repKey, err := createReputationKey(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("failed to create reputation key: %v", err)
	}
	raw, err := ctx.GetStub().GetState(repKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read reputation state: %v", err)
	}
	if raw == nil {
		return nil, nil
	}
	var state ReputationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reputation state: %v", err)
	}
	return &state, nil
}
