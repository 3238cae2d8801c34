package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmitEvaluationGuards(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	reputation := &ReputationContract{}

	err := reputation.SubmitEvaluation(ledger.as(teamID), teamID, 80, 80, 80, 80, 80)
	require.ErrorContains(t, err, "UNAUTHORIZED")

	err = reputation.SubmitEvaluation(ledger.as(ownerID), insurerID, 80, 80, 80, 80, 80)
	require.ErrorContains(t, err, "INVALID_TEAM")

	err = reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 101, 80, 80, 80, 80)
	require.ErrorContains(t, err, "OUT_OF_RANGE")
	err = reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 80, 80, 80, 80, 101)
	require.ErrorContains(t, err, "OUT_OF_RANGE")

	// Rejected submissions must not seed reputation state.
	_, err = reputation.GetReputation(ledger.as(strangerID), teamID)
	require.ErrorContains(t, err, "NOT_FOUND")
}

func TestSubmitEvaluationRunningAverage(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	reputation := &ReputationContract{}

	// A perfect first evaluation replaces the starting score entirely.
	require.NoError(t, reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 100, 100, 100, 100, 100))
	state, err := reputation.GetReputation(ledger.as(strangerID), teamID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), state.Score)
	require.Equal(t, uint64(1), state.Count)
	require.Equal(t, uint64(1), state.Version)

	// floor((100*1 + 0)/2) = 50.
	require.NoError(t, reputation.SubmitEvaluation(ledger.as(managerID), teamID, 0, 0, 0, 0, 0))
	state, err = reputation.GetReputation(ledger.as(strangerID), teamID)
	require.NoError(t, err)
	require.Equal(t, uint64(50), state.Score)
	require.Equal(t, uint64(2), state.Count)
	require.Equal(t, uint64(2), state.Version)

	// Weighted contribution of (50,100,80,100,100): floor(75/1) with
	// weights 40/20/25/10/5 gives 75; floor((50*2 + 75)/3) = 58.
	require.NoError(t, reputation.SubmitEvaluation(ledger.as(insurerID), teamID, 50, 100, 80, 100, 100))
	state, err = reputation.GetReputation(ledger.as(strangerID), teamID)
	require.NoError(t, err)
	require.Equal(t, uint64(58), state.Score)
	require.Equal(t, uint64(3), state.Count)

	var payload ReputationUpdatedEvent
	require.NoError(t, json.Unmarshal(ledger.stub.lastEvent().Payload, &payload))
	require.Equal(t, "REPUTATION_UPDATED", ledger.stub.lastEvent().Name)
	require.Equal(t, insurerID, payload.Evaluator)
	require.Equal(t, uint64(58), payload.Score)
	require.Equal(t, uint64(3), payload.Version)
}

func TestEvaluationHistoryIsPerPairAndOrdered(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	reputation := &ReputationContract{}

	require.NoError(t, reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 100, 100, 100, 100, 100))
	require.NoError(t, reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 0, 0, 0, 0, 0))
	require.NoError(t, reputation.SubmitEvaluation(ledger.as(managerID), teamID, 60, 60, 60, 60, 60))

	history, err := reputation.GetEvaluations(ledger.as(strangerID), ownerID, teamID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, uint64(1), history[0].Sequence)
	require.Equal(t, uint64(100), history[0].Weighted)
	require.Equal(t, uint64(2), history[1].Sequence)
	require.Equal(t, uint64(0), history[1].Weighted)

	other, err := reputation.GetEvaluations(ledger.as(strangerID), managerID, teamID)
	require.NoError(t, err)
	require.Len(t, other, 1)
	require.Equal(t, uint64(1), other[0].Sequence)
}

func TestDisputeEvaluationSuppressionRoundTrip(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	reputation := &ReputationContract{}

	err := reputation.DisputeEvaluation(ledger.as(ownerID), ownerID)
	require.ErrorContains(t, err, "UNAUTHORIZED")

	// No prior evaluation from this evaluator, nothing to dispute.
	err = reputation.DisputeEvaluation(ledger.as(teamID), ownerID)
	require.ErrorContains(t, err, "NOT_FOUND")

	require.NoError(t, reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 10, 10, 10, 10, 10))
	require.NoError(t, reputation.DisputeEvaluation(ledger.as(teamID), ownerID))
	require.Equal(t, "EVALUATION_DISPUTED", ledger.stub.lastEvent().Name)

	// Submissions from the disputed evaluator are suppressed; other
	// evaluators are unaffected.
	err = reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 90, 90, 90, 90, 90)
	require.ErrorContains(t, err, "FORBIDDEN")
	require.NoError(t, reputation.SubmitEvaluation(ledger.as(managerID), teamID, 90, 90, 90, 90, 90))

	err = reputation.ResolveDispute(ledger.as(insurerID), teamID, ownerID)
	require.ErrorContains(t, err, "UNAUTHORIZED")

	require.NoError(t, reputation.ResolveDispute(ledger.as(authorityID), teamID, ownerID))
	require.Equal(t, "EVALUATION_DISPUTE_RESOLVED", ledger.stub.lastEvent().Name)

	// The cleared evaluator can score again; resolving twice fails.
	require.NoError(t, reputation.SubmitEvaluation(ledger.as(ownerID), teamID, 90, 90, 90, 90, 90))
	err = reputation.ResolveDispute(ledger.as(authorityID), teamID, ownerID)
	require.ErrorContains(t, err, "NOT_FOUND")

	// The suppressed window left recorded scores untouched.
	history, err := reputation.GetEvaluations(ledger.as(strangerID), ownerID, teamID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestGetReputationUnknownTeam(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	reputation := &ReputationContract{}

	_, err := reputation.GetReputation(ledger.as(strangerID), teamID)
	require.ErrorContains(t, err, "NOT_FOUND")
}
