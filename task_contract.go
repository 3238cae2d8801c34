package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// TaskContract implements the maintenance task workflow engine. A task
// moves through IN_PROGRESS -> COMPLETED, or through the dispute path
// IN_PROGRESS -> DISPUTED -> {COMPLETED, IN_PROGRESS}; no other
// transition is legal.
type TaskContract struct {
	contractapi.Contract
}

// ============================================================
// ASSIGNMENT
// ============================================================

// AssignTask creates a new maintenance task on a registered building and
// assigns it to a maintenance team. Only facility managers can assign
// tasks. Task ids come from a monotonic counter starting at 1 and are
// never reused. Emits TASK_ASSIGNED and returns the new task id.
func (s *TaskContract) AssignTask(ctx contractapi.TransactionContextInterface, buildingID, description, team string) (uint64, error) {
	manager, err := requireCallerRole(ctx, RoleFacilityManager)
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

	isTeam, err := hasRole(ctx, team, RoleMaintenanceTeam)
	if err != nil {
		return 0, err
	}
	if !isTeam {
		return 0, fmt.Errorf("INVALID_TEAM: %s does not hold the MAINTENANCE_TEAM role", team)
	}

	taskID, err := nextSequence(ctx, KeyTaskSeq)
	if err != nil {
		return 0, err
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	task := MaintenanceTask{
		DocType:      "maintenanceTask",
		TaskID:       taskID,
		BuildingID:   buildingID,
		Description:  description,
		AssignedTeam: team,
		AssignedBy:   manager,
		Status:       TaskInProgress,
		FabricTxID:   txID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	taskKey, err := createTaskKey(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to create task key: %v", err)
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal task: %v", err)
	}
	if err := ctx.GetStub().PutState(taskKey, taskBytes); err != nil {
		return 0, fmt.Errorf("failed to put task: %v", err)
	}

	indexKey, err := createTeamTaskIndexKey(ctx, team, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to create team task index key: %v", err)
	}
	if err := ctx.GetStub().PutState(indexKey, []byte(padSeq(taskID))); err != nil {
		return 0, fmt.Errorf("failed to put team task index: %v", err)
	}

	event := TaskAssignedEvent{
		Type:        "TASK_ASSIGNED",
		TaskID:      taskID,
		BuildingID:  buildingID,
		Description: description,
		Team:        team,
		Manager:     manager,
		FabricTxID:  txID,
		Timestamp:   now,
		ChannelID:   ctx.GetStub().GetChannelID(),
	}
	if err := emitEvent(ctx, "TASK_ASSIGNED", event); err != nil {
		return 0, err
	}
	return taskID, nil
}

// ============================================================
// TRANSITIONS
// ============================================================

// MarkCompleted moves an in-progress task to COMPLETED. The caller must
// hold MAINTENANCE_TEAM and be the team the task was assigned to.
// Emits TASK_COMPLETED.
func (s *TaskContract) MarkCompleted(ctx contractapi.TransactionContextInterface, taskID uint64) error {
	caller, err := requireCallerRole(ctx, RoleMaintenanceTeam)
	if err != nil {
		return err
	}

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.AssignedTeam != caller {
		return fmt.Errorf("FORBIDDEN: task %d is assigned to a different team", taskID)
	}
	if task.Status != TaskInProgress {
		return fmt.Errorf("INVALID_TRANSITION: task %d has status %s, expected %s", taskID, task.Status, TaskInProgress)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	task.Status = TaskCompleted
	task.UpdatedAt = now
	task.FabricTxID = txID

	taskKey, _ := createTaskKey(ctx, taskID)
	taskBytes, _ := json.Marshal(task)
	if err := ctx.GetStub().PutState(taskKey, taskBytes); err != nil {
		return fmt.Errorf("failed to update task: %v", err)
	}

	event := TaskCompletedEvent{
		Type:       "TASK_COMPLETED",
		TaskID:     taskID,
		Team:       task.AssignedTeam,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "TASK_COMPLETED", event)
}

// RaiseDispute moves an in-progress task to DISPUTED, recording the
// reporting manager and the reason. Only facility managers can dispute.
// Emits TASK_DISPUTED.
func (s *TaskContract) RaiseDispute(ctx contractapi.TransactionContextInterface, taskID uint64, reason string) error {
	reporter, err := requireCallerRole(ctx, RoleFacilityManager)
	if err != nil {
		return err
	}

	if reason == "" {
		return fmt.Errorf("EMPTY_REASON: dispute reason cannot be empty")
	}

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != TaskInProgress {
		return fmt.Errorf("INVALID_TRANSITION: task %d has status %s, expected %s", taskID, task.Status, TaskInProgress)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	task.Status = TaskDisputed
	task.DisputedBy = reporter
	task.DisputeReason = reason
	task.UpdatedAt = now
	task.FabricTxID = txID

	taskKey, _ := createTaskKey(ctx, taskID)
	taskBytes, _ := json.Marshal(task)
	if err := ctx.GetStub().PutState(taskKey, taskBytes); err != nil {
		return fmt.Errorf("failed to update task: %v", err)
	}

	event := TaskDisputedEvent{
		Type:       "TASK_DISPUTED",
		TaskID:     taskID,
		Reporter:   reporter,
		Reason:     reason,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "TASK_DISPUTED", event)
}

// ResolveDispute arbitrates a disputed task. Only the regulatory
// authority can call this. With complete=true the task is closed as
// COMPLETED (emitting TASK_COMPLETED); otherwise it is reopened as
// IN_PROGRESS. Reporter and reason are cleared on both branches.
func (s *TaskContract) ResolveDispute(ctx contractapi.TransactionContextInterface, taskID uint64, complete bool) error {
	if _, err := requireAuthority(ctx); err != nil {
		return err
	}

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != TaskDisputed {
		return fmt.Errorf("INVALID_TRANSITION: task %d has status %s, expected %s", taskID, task.Status, TaskDisputed)
	}

	timestamp, _ := ctx.GetStub().GetTxTimestamp()
	now := time.Unix(timestamp.Seconds, 0).Format(time.RFC3339)
	txID := ctx.GetStub().GetTxID()

	if complete {
		task.Status = TaskCompleted
	} else {
		task.Status = TaskInProgress
	}
	task.DisputedBy = ""
	task.DisputeReason = ""
	task.UpdatedAt = now
	task.FabricTxID = txID

	taskKey, _ := createTaskKey(ctx, taskID)
	taskBytes, _ := json.Marshal(task)
	if err := ctx.GetStub().PutState(taskKey, taskBytes); err != nil {
		return fmt.Errorf("failed to update task: %v", err)
	}

	if !complete {
		return nil
	}
	event := TaskCompletedEvent{
		Type:       "TASK_COMPLETED",
		TaskID:     taskID,
		Team:       task.AssignedTeam,
		FabricTxID: txID,
		Timestamp:  now,
		ChannelID:  ctx.GetStub().GetChannelID(),
	}
	return emitEvent(ctx, "TASK_COMPLETED", event)
}

// ============================================================
// QUERIES
// ============================================================

// GetTask retrieves a maintenance task by id.
func (s *TaskContract) GetTask(ctx contractapi.TransactionContextInterface, taskID uint64) (*MaintenanceTask, error) {
	taskKey, err := createTaskKey(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task key: %v", err)
	}
	taskBytes, err := ctx.GetStub().GetState(taskKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read world state: %v", err)
	}
	if taskBytes == nil {
		return nil, fmt.Errorf("NOT_FOUND: task %d does not exist", taskID)
	}
	var task MaintenanceTask
	if err := json.Unmarshal(taskBytes, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %v", err)
	}
	return &task, nil
}

// QueryTasksByTeam returns all tasks ever assigned to the given team,
// using the TEAMTASK composite key index.
func (s *TaskContract) QueryTasksByTeam(ctx contractapi.TransactionContextInterface, team string) ([]*MaintenanceTask, error) {
	if team == "" {
		return nil, fmt.Errorf("INVALID_ADDRESS: team cannot be empty")
	}

	iterator, err := ctx.GetStub().GetStateByPartialCompositeKey(KeyPrefixTeamTaskIndex, []string{team})
	if err != nil {
		return nil, fmt.Errorf("failed to query team task index: %v", err)
	}
	defer iterator.Close()

	var tasks []*MaintenanceTask
	for iterator.HasNext() {
		kv, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate team task index: %v", err)
		}
		taskKey, err := ctx.GetStub().CreateCompositeKey(KeyPrefixTask, []string{string(kv.Value)})
		if err != nil {
			return nil, fmt.Errorf("failed to create task key: %v", err)
		}
		taskBytes, err := ctx.GetStub().GetState(taskKey)
		if err != nil || taskBytes == nil {
			continue
		}
		var task MaintenanceTask
		if err := json.Unmarshal(taskBytes, &task); err != nil {
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}
