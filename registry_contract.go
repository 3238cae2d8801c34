package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// AssetRegistryContract implements the versioned building registry: one
// immutable initial snapshot per building, created by a construction
// company, plus an append-only log of periodic updates with strictly
// increasing sequence numbers.
type AssetRegistryContract struct {
	contractapi.Contract
}

// ============================================================
// REGISTRATION
// ============================================================

// RegisterInitial creates the initial snapshot of a building. Only
// principals holding CONSTRUCTION_COMPANY can call this, and a building
// can be registered exactly once. Emits INITIAL_DATA_UPLOADED.
func (s *AssetRegistryContract) RegisterInitial(ctx contractapi.TransactionContextInterface, buildingID, specification string, maintenancePeriod uint64, contentHash, insuranceRef string) error {
	caller, err := requireCallerRole(ctx, RoleConstructionCompany)
	if err != nil {
		return err
	}

	if buildingID == "" {
		return fmt.Errorf("INVALID_ADDRESS: buildingId cannot be empty")
	}

	buildingKey, err := createBuildingKey(ctx, buildingID)
	if err != nil {
		return fmt.Errorf("failed to create building key: %v", err)
	}
	existing, err := ctx.GetStub().GetState(buildingKey)
	if err != nil {
		return fmt.Errorf("failed to read world state: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("ALREADY_EXISTS: building %s already registered", buildingID)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	record := BuildingRecord{
		DocType:           "buildingRecord",
		BuildingID:        buildingID,
		Specification:     specification,
		MaintenancePeriod: maintenancePeriod,
		ContentHash:       contentHash,
		InsuranceRef:      insuranceRef,
		UpdateCount:       0,
		FabricTxID:        txID,
		CreatedAt:         now,
		CreatedBy:         caller,
		UpdatedAt:         now,
		UpdatedBy:         caller,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal building record: %v", err)
	}
	if err := ctx.GetStub().PutState(buildingKey, recordBytes); err != nil {
		return fmt.Errorf("failed to put building record: %v", err)
	}

	event := InitialDataUploadedEvent{
		Type:              "INITIAL_DATA_UPLOADED",
		BuildingID:        buildingID,
		Specification:     specification,
		MaintenancePeriod: maintenancePeriod,
		ContentHash:       contentHash,
		InsuranceRef:      insuranceRef,
		FabricTxID:        txID,
		Timestamp:         now,
		ChannelID:         ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "INITIAL_DATA_UPLOADED", event)
}

// AppendPeriodicUpdate appends one entry to a building's update log.
// Callable by facility managers and building owners. The sequence number
// is priorCount+1, so the log is a gapless run starting at 1. Emits
// PERIODIC_DATA_UPLOADED.
func (s *AssetRegistryContract) AppendPeriodicUpdate(ctx contractapi.TransactionContextInterface, buildingID string, dataTimestamp uint64, contentHash string) error {
	caller, err := requireCallerRole(ctx, RoleFacilityManager, RoleBuildingOwner)
	if err != nil {
		return err
	}

	record, err := getBuildingRecord(ctx, buildingID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("NOT_FOUND: building %s is not registered", buildingID)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	sequence := record.UpdateCount + 1
	update := PeriodicUpdate{
		DocType:     "periodicUpdate",
		BuildingID:  buildingID,
		Sequence:    sequence,
		Timestamp:   dataTimestamp,
		ContentHash: contentHash,
		FabricTxID:  txID,
		CreatedAt:   now,
		CreatedBy:   caller,
	}
	updateKey, err := createUpdateKey(ctx, buildingID, sequence)
	if err != nil {
		return fmt.Errorf("failed to create update key: %v", err)
	}
	updateBytes, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal periodic update: %v", err)
	}
	if err := ctx.GetStub().PutState(updateKey, updateBytes); err != nil {
		return fmt.Errorf("failed to put periodic update: %v", err)
	}

	record.UpdateCount = sequence
	record.UpdatedAt = now
	record.UpdatedBy = caller
	record.FabricTxID = txID

	buildingKey, _ := createBuildingKey(ctx, buildingID)
	recordBytes, _ := json.Marshal(record)
	if err := ctx.GetStub().PutState(buildingKey, recordBytes); err != nil {
		return fmt.Errorf("failed to update building record: %v", err)
	}

	event := PeriodicDataUploadedEvent{
		Type:        "PERIODIC_DATA_UPLOADED",
		BuildingID:  buildingID,
		Sequence:    sequence,
		DataTime:    dataTimestamp,
		ContentHash: contentHash,
		FabricTxID:  txID,
		Timestamp:   now,
		ChannelID:   ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "PERIODIC_DATA_UPLOADED", event)
}

// ============================================================
// QUERIES
// ============================================================

// IsRegistered reports whether an initial snapshot exists for buildingID.
// Workflow engines use this as their building-existence guard.
func (s *AssetRegistryContract) IsRegistered(ctx contractapi.TransactionContextInterface, buildingID string) (bool, error) {
	return buildingExists(ctx, buildingID)
}

// UpdateCount returns the number of periodic updates appended for the
// building. Unregistered buildings report 0.
func (s *AssetRegistryContract) UpdateCount(ctx contractapi.TransactionContextInterface, buildingID string) (uint64, error) {
	record, err := getBuildingRecord(ctx, buildingID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return record.UpdateCount, nil
}

// GetBuilding retrieves a building record by id.
func (s *AssetRegistryContract) GetBuilding(ctx contractapi.TransactionContextInterface, buildingID string) (*BuildingRecord, error) {
	record, err := getBuildingRecord(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("NOT_FOUND: building %s is not registered", buildingID)
	}
	return record, nil
}

// GetPeriodicUpdates returns the full update log of a building in
// sequence order.
func (s *AssetRegistryContract) GetPeriodicUpdates(ctx contractapi.TransactionContextInterface, buildingID string) ([]*PeriodicUpdate, error) {
	exists, err := buildingExists(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("NOT_FOUND: building %s is not registered", buildingID)
	}

	iterator, err := ctx.GetStub().GetStateByPartialCompositeKey(KeyPrefixUpdate, []string{buildingID})
	if err != nil {
		return nil, fmt.Errorf("failed to query periodic updates: %v", err)
	}
	defer iterator.Close()

	var updates []*PeriodicUpdate
	for iterator.HasNext() {
		kv, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate periodic updates: %v", err)
		}
		var update PeriodicUpdate
		if err := json.Unmarshal(kv.Value, &update); err != nil {
			return nil, fmt.Errorf("failed to unmarshal periodic update: %v", err)
		}
		updates = append(updates, &update)
	}
	return updates, nil
}

// GetBuildingHistory retrieves the full transaction history of a building
// record using Fabric's built-in history database.
func (s *AssetRegistryContract) GetBuildingHistory(ctx contractapi.TransactionContextInterface, buildingID string) ([]*BuildingHistoryEntry, error) {
	buildingKey, err := createBuildingKey(ctx, buildingID)
	if err != nil {
		return nil, fmt.Errorf("failed to create building key: %v", err)
	}

	historyIterator, err := ctx.GetStub().GetHistoryForKey(buildingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %v", buildingID, err)
	}
	defer historyIterator.Close()

	var history []*BuildingHistoryEntry
	for historyIterator.HasNext() {
		modification, err := historyIterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate history: %v", err)
		}

		entry := &BuildingHistoryEntry{
			TxID:      modification.TxId,
			Timestamp: time.Unix(modification.Timestamp.Seconds, 0).Format(time.RFC3339),
			IsDelete:  modification.IsDelete,
		}
		if !modification.IsDelete && modification.Value != nil {
			var record BuildingRecord
			if err := json.Unmarshal(modification.Value, &record); err == nil {
				entry.Record = &record
			}
		}
		history = append(history, entry)
	}
	return history, nil
}
