package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmitClaimGuards(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	registerBuilding(t, ledger)
	claims := &ClaimContract{}

	_, err := claims.SubmitClaim(ledger.as(teamID), testBuildingID, "policy-77", "hash-damage")
	require.ErrorContains(t, err, "UNAUTHORIZED")

	_, err = claims.SubmitClaim(ledger.as(ownerID), "no-such-building", "policy-77", "hash-damage")
	require.ErrorContains(t, err, "NOT_FOUND")
}

func TestSubmitClaimAllocatesSequentialIDs(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	registerBuilding(t, ledger)
	claims := &ClaimContract{}

	first, err := claims.SubmitClaim(ledger.as(ownerID), testBuildingID, "policy-77", "hash-a")
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)

	second, err := claims.SubmitClaim(ledger.as(managerID), testBuildingID, "policy-77", "hash-b")
	require.NoError(t, err)
	require.Equal(t, uint64(2), second)

	claim, err := claims.GetClaim(ledger.as(strangerID), first)
	require.NoError(t, err)
	require.Equal(t, ClaimSubmitted, claim.Status)
	require.Equal(t, ownerID, claim.Submitter)
	require.False(t, claim.Approved)

	byBuilding, err := claims.QueryClaimsByBuilding(ledger.as(strangerID), testBuildingID)
	require.NoError(t, err)
	require.Len(t, byBuilding, 2)

	var payload ClaimSubmittedEvent
	require.NoError(t, json.Unmarshal(ledger.stub.lastEvent().Payload, &payload))
	require.Equal(t, uint64(2), payload.ClaimID)
	require.Equal(t, testBuildingID, payload.BuildingID)
}

func TestAttachInfoAdvancesToUnderReview(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	registerBuilding(t, ledger)
	claims := &ClaimContract{}

	claimID, err := claims.SubmitClaim(ledger.as(ownerID), testBuildingID, "policy-77", "hash-a")
	require.NoError(t, err)

	err = claims.AttachInfo(ledger.as(ownerID), claimID, "hash-report")
	require.ErrorContains(t, err, "UNAUTHORIZED")

	require.NoError(t, claims.AttachInfo(ledger.as(teamID), claimID, "hash-report"))
	claim, err := claims.GetClaim(ledger.as(strangerID), claimID)
	require.NoError(t, err)
	require.Equal(t, ClaimUnderReview, claim.Status)
	require.Equal(t, "hash-report", claim.DescriptionHash)

	// Re-attachment while under review overwrites the hash in place.
	require.NoError(t, claims.AttachInfo(ledger.as(teamID), claimID, "hash-report-v2"))
	claim, err = claims.GetClaim(ledger.as(strangerID), claimID)
	require.NoError(t, err)
	require.Equal(t, ClaimUnderReview, claim.Status)
	require.Equal(t, "hash-report-v2", claim.DescriptionHash)
}

func TestProcessClaimDecision(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	registerBuilding(t, ledger)
	claims := &ClaimContract{}

	claimID, err := claims.SubmitClaim(ledger.as(ownerID), testBuildingID, "policy-77", "hash-a")
	require.NoError(t, err)

	// A claim must reach review before the insurer can decide on it.
	err = claims.ProcessClaim(ledger.as(insurerID), claimID, true)
	require.ErrorContains(t, err, "INVALID_TRANSITION")

	require.NoError(t, claims.AttachInfo(ledger.as(teamID), claimID, "hash-report"))

	err = claims.ProcessClaim(ledger.as(ownerID), claimID, true)
	require.ErrorContains(t, err, "UNAUTHORIZED")

	require.NoError(t, claims.ProcessClaim(ledger.as(insurerID), claimID, true))
	claim, err := claims.GetClaim(ledger.as(strangerID), claimID)
	require.NoError(t, err)
	require.Equal(t, ClaimResolved, claim.Status)
	require.True(t, claim.Approved)
	require.Equal(t, "CLAIM_PROCESSED", ledger.stub.lastEvent().Name)

	// Resolution is terminal.
	err = claims.ProcessClaim(ledger.as(insurerID), claimID, false)
	require.ErrorContains(t, err, "INVALID_TRANSITION")
	err = claims.AttachInfo(ledger.as(teamID), claimID, "hash-late")
	require.ErrorContains(t, err, "INVALID_TRANSITION")
	err = claims.RaiseDispute(ledger.as(ownerID), claimID, "disagree")
	require.ErrorContains(t, err, "INVALID_TRANSITION")
}

func TestClaimDisputeAndArbitration(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	registerBuilding(t, ledger)
	claims := &ClaimContract{}

	claimID, err := claims.SubmitClaim(ledger.as(ownerID), testBuildingID, "policy-77", "hash-a")
	require.NoError(t, err)
	require.NoError(t, claims.AttachInfo(ledger.as(teamID), claimID, "hash-report"))

	err = claims.RaiseDispute(ledger.as(insurerID), claimID, "reason")
	require.ErrorContains(t, err, "UNAUTHORIZED")

	err = claims.RaiseDispute(ledger.as(managerID), claimID, "")
	require.ErrorContains(t, err, "EMPTY_REASON")

	require.NoError(t, claims.RaiseDispute(ledger.as(managerID), claimID, "lowball assessment"))
	claim, err := claims.GetClaim(ledger.as(strangerID), claimID)
	require.NoError(t, err)
	require.Equal(t, ClaimDisputed, claim.Status)
	require.Equal(t, "lowball assessment", claim.DisputeReason)

	var disputed ClaimDisputedEvent
	require.NoError(t, json.Unmarshal(ledger.stub.lastEvent().Payload, &disputed))
	require.Equal(t, managerID, disputed.Submitter)

	// The insurer cannot decide a disputed claim; only the authority can.
	err = claims.ProcessClaim(ledger.as(insurerID), claimID, false)
	require.ErrorContains(t, err, "INVALID_TRANSITION")
	err = claims.ResolveDispute(ledger.as(insurerID), claimID, true)
	require.ErrorContains(t, err, "UNAUTHORIZED")

	require.NoError(t, claims.ResolveDispute(ledger.as(authorityID), claimID, true))
	claim, err = claims.GetClaim(ledger.as(strangerID), claimID)
	require.NoError(t, err)
	require.Equal(t, ClaimResolved, claim.Status)
	require.True(t, claim.Approved)
	require.Empty(t, claim.DisputeReason)
	require.Equal(t, "CLAIM_RESOLVED", ledger.stub.lastEvent().Name)

	err = claims.ResolveDispute(ledger.as(authorityID), claimID, false)
	require.ErrorContains(t, err, "INVALID_TRANSITION")
}

func TestResolveDisputeRequiresDisputedClaim(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	registerBuilding(t, ledger)
	claims := &ClaimContract{}

	claimID, err := claims.SubmitClaim(ledger.as(ownerID), testBuildingID, "policy-77", "hash-a")
	require.NoError(t, err)

	err = claims.ResolveDispute(ledger.as(authorityID), claimID, true)
	require.ErrorContains(t, err, "INVALID_TRANSITION")
}

func TestGetClaimNotFound(t *testing.T) {
	ledger := newTestLedger()
	bootstrapDirectory(t, ledger)
	claims := &ClaimContract{}

	_, err := claims.GetClaim(ledger.as(strangerID), 99)
	require.ErrorContains(t, err, "NOT_FOUND")
}
