package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// ClaimContract implements the insurance claim workflow engine. A claim
// moves SUBMITTED -> UNDER_REVIEW (via info attachment), then either
// UNDER_REVIEW -> RESOLVED by the insurer or through the dispute path
// UNDER_REVIEW -> DISPUTED -> RESOLVED by the authority; no other
// transition is legal.
type ClaimContract struct {
	contractapi.Contract
}

// ============================================================
// SUBMISSION
// ============================================================

// SubmitClaim files an insurance claim against a registered building.
// Only building owners and facility managers can submit. Claim ids come
// from a monotonic counter starting at 1 and are never reused. Emits
// CLAIM_SUBMITTED and returns the new claim id.
func (s *ClaimContract) SubmitClaim(ctx contractapi.TransactionContextInterface, buildingID, insuranceRef, descriptionHash string) (uint64, error) {
	submitter, err := requireCallerRole(ctx, RoleBuildingOwner, RoleFacilityManager)
	if err != nil {
		return 0, err
	}

	if buildingID == "" {
		return 0, fmt.Errorf("INVALID_ADDRESS: buildingId cannot be empty")
	}
	exists, err := buildingExists(ctx, buildingID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("NOT_FOUND: building %s is not registered", buildingID)
	}

	claimID, err := nextSequence(ctx, KeyClaimSeq)
	if err != nil {
		return 0, err
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	claim := InsuranceClaim{
		DocType:         "insuranceClaim",
		ClaimID:         claimID,
		BuildingID:      buildingID,
		InsuranceRef:    insuranceRef,
		DescriptionHash: descriptionHash,
		Approved:        false,
		Status:          ClaimSubmitted,
		Submitter:       submitter,
		FabricTxID:      txID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	claimKey, err := createClaimKey(ctx, claimID)
	if err != nil {
		return 0, fmt.Errorf("failed to create claim key: %v", err)
	}
	claimBytes, err := json.Marshal(claim)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal claim: %v", err)
	}
	if err := ctx.GetStub().PutState(claimKey, claimBytes); err != nil {
		return 0, fmt.Errorf("failed to put claim: %v", err)
	}

	indexKey, err := createBuildingClaimIndexKey(ctx, buildingID, claimID)
	if err != nil {
		return 0, fmt.Errorf("failed to create building claim index key: %v", err)
	}
	if err := ctx.GetStub().PutState(indexKey, []byte(padSeq(claimID))); err != nil {
		return 0, fmt.Errorf("failed to put building claim index: %v", err)
	}

	event := ClaimSubmittedEvent{
		Type:            "CLAIM_SUBMITTED",
		ClaimID:         claimID,
		BuildingID:      buildingID,
		InsuranceRef:    insuranceRef,
		DescriptionHash: descriptionHash,
		FabricTxID:      txID,
		Timestamp:       now,
		ChannelID:       ctx.GetStub().GetChannelID(),
	}
	if err := emitEvent(ctx, "CLAIM_SUBMITTED", event); err != nil {
		return 0, err
	}
	return claimID, nil
}

// ============================================================
// REVIEW & RESOLUTION
// ============================================================

// AttachInfo attaches supporting information from the maintenance team to
// a claim that is SUBMITTED or UNDER_REVIEW. The description hash is
// overwritten and the claim is advanced to UNDER_REVIEW.
func (s *ClaimContract) AttachInfo(ctx contractapi.TransactionContextInterface, claimID uint64, infoHash string) error {
	if _, err := requireCallerRole(ctx, RoleMaintenanceTeam); err != nil {
		return err
	}

	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Status != ClaimSubmitted && claim.Status != ClaimUnderReview {
		return fmt.Errorf("INVALID_TRANSITION: claim %d has status %s, expected %s or %s", claimID, claim.Status, ClaimSubmitted, ClaimUnderReview)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)

	claim.DescriptionHash = infoHash
	claim.Status = ClaimUnderReview
	claim.UpdatedAt = now
	claim.FabricTxID = ctx.GetStub().GetTxID()

	claimKey, _ := createClaimKey(ctx, claimID)
	claimBytes, _ := json.Marshal(claim)
	if err := ctx.GetStub().PutState(claimKey, claimBytes); err != nil {
		return fmt.Errorf("failed to update claim: %v", err)
	}
	return nil
}

// ProcessClaim records the insurer's approval decision on a claim under
// review, closing it as RESOLVED. Only insurance companies can process
// claims. Emits CLAIM_PROCESSED.
func (s *ClaimContract) ProcessClaim(ctx contractapi.TransactionContextInterface, claimID uint64, approved bool) error {
	if _, err := requireCallerRole(ctx, RoleInsuranceCompany); err != nil {
		return err
	}

	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Status != ClaimUnderReview {
		return fmt.Errorf("INVALID_TRANSITION: claim %d has status %s, expected %s", claimID, claim.Status, ClaimUnderReview)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	claim.Approved = approved
	claim.Status = ClaimResolved
	claim.UpdatedAt = now
	claim.FabricTxID = txID

	claimKey, _ := createClaimKey(ctx, claimID)
	claimBytes, _ := json.Marshal(claim)
	if err := ctx.GetStub().PutState(claimKey, claimBytes); err != nil {
		return fmt.Errorf("failed to update claim: %v", err)
	}

	event := ClaimProcessedEvent{
		Type:       "CLAIM_PROCESSED",
		ClaimID:    claimID,
		Approved:   approved,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "CLAIM_PROCESSED", event)
}

// RaiseDispute disputes a claim under review. Callable by the submitter
// role class (building owners and facility managers). Emits CLAIM_DISPUTED.
func (s *ClaimContract) RaiseDispute(ctx contractapi.TransactionContextInterface, claimID uint64, reason string) error {
	disputer, err := requireCallerRole(ctx, RoleBuildingOwner, RoleFacilityManager)
	if err != nil {
		return err
	}

	if reason == "" {
		return fmt.Errorf("EMPTY_REASON: dispute reason cannot be empty")
	}

	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Status != ClaimUnderReview {
		return fmt.Errorf("INVALID_TRANSITION: claim %d has status %s, expected %s", claimID, claim.Status, ClaimUnderReview)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	claim.Status = ClaimDisputed
	claim.DisputeReason = reason
	claim.UpdatedAt = now
	claim.FabricTxID = txID

	claimKey, _ := createClaimKey(ctx, claimID)
	claimBytes, _ := json.Marshal(claim)
	if err := ctx.GetStub().PutState(claimKey, claimBytes); err != nil {
		return fmt.Errorf("failed to update claim: %v", err)
	}

	event := ClaimDisputedEvent{
		Type:       "CLAIM_DISPUTED",
		ClaimID:    claimID,
		Submitter:  disputer,
		Reason:     reason,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "CLAIM_DISPUTED", event)
}

// ResolveDispute arbitrates a disputed claim with a final approval
// decision, closing it as RESOLVED and clearing the dispute reason.
// Only the regulatory authority can call this. Emits CLAIM_RESOLVED.
func (s *ClaimContract) ResolveDispute(ctx contractapi.TransactionContextInterface, claimID uint64, finalApproval bool) error {
	if _, err := requireAuthority(ctx); err != nil {
		return err
	}

	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Status != ClaimDisputed {
		return fmt.Errorf("INVALID_TRANSITION: claim %d has status %s, expected %s", claimID, claim.Status, ClaimDisputed)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	claim.Approved = finalApproval
	claim.Status = ClaimResolved
	claim.DisputeReason = ""
	claim.UpdatedAt = now
	claim.FabricTxID = txID

	claimKey, _ := createClaimKey(ctx, claimID)
	claimBytes, _ := json.Marshal(claim)
	if err := ctx.GetStub().PutState(claimKey, claimBytes); err != nil {
		return fmt.Errorf("failed to update claim: %v", err)
	}

	event := ClaimResolvedEvent{
		Type:          "CLAIM_RESOLVED",
		ClaimID:       claimID,
		FinalApproval: finalApproval,
		FabricTxID:    txID,
		Timestamp:     now,
		ChannelID:     ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "CLAIM_RESOLVED", event)
}

// ============================================================
// QUERIES
// ============================================================

// GetClaim retrieves an insurance claim by id.
func (s *ClaimContract) GetClaim(ctx contractapi.TransactionContextInterface, claimID uint64) (*InsuranceClaim, error) {
	claimKey, err := createClaimKey(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to create claim key: %v", err)
	}
	claimBytes, err := ctx.GetStub().GetState(claimKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read world state: %v", err)
	}
	if claimBytes == nil {
		return nil, fmt.Errorf("NOT_FOUND: claim %d does not exist", claimID)
	}
	var claim InsuranceClaim
	if err := json.Unmarshal(claimBytes, &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim: %v", err)
	}
	return &claim, nil
}

// QueryClaimsByBuilding returns all claims filed against the given
// building, using the BLDGCLAIM composite key index.
func (s *ClaimContract) QueryClaimsByBuilding(ctx contractapi.TransactionContextInterface, buildingID string) ([]*InsuranceClaim, error) {
	if buildingID == "" {
		return nil, fmt.Errorf("INVALID_ADDRESS: buildingId cannot be empty")
	}

	iterator, err := ctx.GetStub().GetStateByPartialCompositeKey(KeyPrefixBuildingClaimIndex, []string{buildingID})
	if err != nil {
		return nil, fmt.Errorf("failed to query building claim index: %v", err)
	}
	defer iterator.Close()

	var claims []*InsuranceClaim
	for iterator.HasNext() {
		kv, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate building claim index: %v", err)
		}
		claimKey, err := ctx.GetStub().CreateCompositeKey(KeyPrefixClaim, []string{string(kv.Value)})
		if err != nil {
			return nil, fmt.Errorf("failed to create claim key: %v", err)
		}
		claimBytes, err := ctx.GetStub().GetState(claimKey)
		if err != nil || claimBytes == nil {
			continue
		}
		var claim InsuranceClaim
		if err := json.Unmarshal(claimBytes, &claim); err != nil {
			continue
		}
		claims = append(claims, &claim)
	}
	return claims, nil
}
