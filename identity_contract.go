package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// IdentityContract implements the identity and role directory. The
// regulatory authority, designated once at bootstrap, admits principals
// into one of five roles; every other contract gates its operations on
// the directory through read-only lookups.
type IdentityContract struct {
	contractapi.Contract
}

// ============================================================
// BOOTSTRAP
// ============================================================

// Bootstrap designates the calling principal as the regulatory authority.
// It can run exactly once per channel; all later arbitration and role
// admission is gated on this identity. Emits AUTHORITY_DESIGNATED.
func (s *IdentityContract) Bootstrap(ctx contractapi.TransactionContextInterface) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}

	existing, err := getAuthority(ctx)
	if err != nil {
		return err
	}
	if existing != "" {
		return fmt.Errorf("ALREADY_EXISTS: regulatory authority already designated")
	}

	if err := ctx.GetStub().PutState(KeyAuthority, []byte(caller)); err != nil {
		return fmt.Errorf("failed to record authority: %v", err)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	event := AuthorityDesignatedEvent{
		Type:       "AUTHORITY_DESIGNATED",
		Authority:  caller,
		FabricTxID: ctx.GetStub().GetTxID(),
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "AUTHORITY_DESIGNATED", event)
}

// GetAuthority returns the designated regulatory authority principal.
func (s *IdentityContract) GetAuthority(ctx contractapi.TransactionContextInterface) (string, error) {
	authority, err := getAuthority(ctx)
	if err != nil {
		return "", err
	}
	if authority == "" {
		return "", fmt.Errorf("NOT_FOUND: no regulatory authority designated")
	}
	return authority, nil
}

// ============================================================
// ROLE ADMISSION
// ============================================================

// AssignRole admits a principal into the role directory or reassigns it
// to a different role. Only the regulatory authority can call this.
// A first admission records version 1 and emits ROLE_ASSIGNED; a
// reassignment to a different role increments the version and emits
// ROLE_CHANGED; a reassignment to the currently held role is rejected
// with DUPLICATE_REGISTRATION and changes nothing.
func (s *IdentityContract) AssignRole(ctx contractapi.TransactionContextInterface, principal string, role string) error {
	authority, err := requireAuthority(ctx)
	if err != nil {
		return err
	}

	if principal == "" {
		return fmt.Errorf("INVALID_ADDRESS: principal cannot be empty")
	}
	requested := Role(role)
	if !requested.Valid() {
		return fmt.Errorf("INVALID_ROLE: '%s' is not a recognized role", role)
	}

	roleKey, err := createRoleKey(ctx, principal)
	if err != nil {
		return fmt.Errorf("failed to create role key: %v", err)
	}
	record, err := getRoleRecord(ctx, principal)
	if err != nil {
		return err
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	eventName := "ROLE_ASSIGNED"
	if record == nil {
		record = &RoleRecord{
			DocType:    "roleRecord",
			Principal:  principal,
			Role:       requested,
			Version:    1,
			AssignedBy: authority,
			FabricTxID: txID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	} else {
		if record.Role == requested {
			return fmt.Errorf("DUPLICATE_REGISTRATION: principal already holds role '%s'", requested)
		}
		record.Role = requested
		record.Version++
		record.AssignedBy = authority
		record.FabricTxID = txID
		record.UpdatedAt = now
		eventName = "ROLE_CHANGED"
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal role record: %v", err)
	}
	if err := ctx.GetStub().PutState(roleKey, recordBytes); err != nil {
		return fmt.Errorf("failed to put role record: %v", err)
	}

	event := RoleEvent{
		Type:       eventName,
		Principal:  principal,
		Role:       record.Role,
		Version:    record.Version,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, eventName, event)
}

// ============================================================
// QUERIES
// ============================================================

// RoleOf returns the current role, version, and existence flag for a
// principal. The read is total: unknown principals report Exists false.
func (s *IdentityContract) RoleOf(ctx contractapi.TransactionContextInterface, principal string) (*RoleInfo, error) {
	record, err := getRoleRecord(ctx, principal)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &RoleInfo{Exists: false}, nil
	}
	return &RoleInfo{Role: record.Role, Version: record.Version, Exists: true}, nil
}

// HasRole reports whether the principal currently holds the given role.
// Unknown role names simply report false.
func (s *IdentityContract) HasRole(ctx contractapi.TransactionContextInterface, principal string, role string) (bool, error) {
	return hasRole(ctx, principal, Role(role))
}
