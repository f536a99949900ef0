package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"sharelist/api/internal/archive"
	"sharelist/api/internal/changelog"
	"sharelist/api/internal/config"
	"sharelist/api/internal/export"
	"sharelist/api/internal/rbac"
	"sharelist/api/internal/search"
	"sharelist/api/internal/sharecode"
	"sharelist/api/internal/store"
	"sharelist/api/internal/util"
)

type dataStore interface {
	CreateList(context.Context, store.SharedList) (store.SharedList, error)
	GetList(context.Context, string) (store.SharedList, error)
	GetListByShareCode(context.Context, string) (store.SharedList, error)
	ListsForUser(context.Context, string) ([]store.SharedList, error)
	UpdateList(context.Context, store.SharedList, *changelog.Record) (store.SharedList, error)
	ListChanges(context.Context, string) ([]changelog.Record, error)
	Ping(ctx context.Context) error
}

type codeRegistry interface {
	Issue(ctx context.Context, listID string) (string, error)
	Resolve(ctx context.Context, code string) (string, error)
	Release(ctx context.Context, code string) error
	Ping(ctx context.Context) error
}

type archiver interface {
	Put(ctx context.Context, listID, filename, contentType string, data []byte) (string, error)
}

type Service struct {
	cfg     config.Config
	store   dataStore
	codes   codeRegistry
	index   *search.Service
	archive archiver
}

func New(cfg config.Config, dataStore *store.PostgresStore, codes *sharecode.RedisRegistry, index *search.Service, archiveStore *archive.MinioArchive) *Service {
	s := &Service{
		cfg:   cfg,
		store: dataStore,
		codes: codes,
		index: index,
	}
	if archiveStore != nil {
		s.archive = archiveStore
	}
	return s
}

func (s *Service) CreateSharedTaskList(ctx context.Context, ownerID, ownerName, name, description string, taskIDs []string, isPublic bool) (map[string]any, error) {
	listName := strings.TrimSpace(name)
	if listName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ownerId is required", nil)
	}

	list := store.SharedList{
		ID:          util.NewID("list"),
		Name:        listName,
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		Collaborators: map[string]store.Collaborator{
			ownerID: {UserID: ownerID, UserName: ownerName, Permission: rbac.PermissionAdmin},
		},
		TaskIDs:  dedupeTaskIDs(taskIDs),
		IsPublic: isPublic,
	}

	if isPublic {
		code, err := s.codes.Issue(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		list.ShareCode = code
	}

	created, err := s.store.CreateList(ctx, list)
	if err != nil {
		if list.ShareCode != "" {
			if releaseErr := s.codes.Release(ctx, list.ShareCode); releaseErr != nil {
				log.Printf("release share code %s after failed create: %v", list.ShareCode, releaseErr)
			}
		}
		return nil, err
	}

	s.reindex(created)
	return listPayload(created), nil
}

func (s *Service) GetSharedTaskList(ctx context.Context, listID, userID string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, userID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return listPayload(list), nil
}

func (s *Service) GetSharedTaskListsForUser(ctx context.Context, userID string) (map[string]any, error) {
	lists, err := s.store.ListsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(lists))
	for _, list := range lists {
		items = append(items, listPayload(list))
	}
	return map[string]any{"lists": items}, nil
}

// JoinSharedTaskList adds the caller as a view collaborator of the list the
// share code resolves to. Joining a list the caller already belongs to is a
// no-op.
func (s *Service) JoinSharedTaskList(ctx context.Context, userID, userName, codeOrLink string) (map[string]any, error) {
	code, err := sharecode.CodeFromLink(codeOrLink)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed share code", nil)
	}

	list, err := s.resolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if _, ok := list.Collaborators[userID]; ok {
		return listPayload(list), nil
	}

	updated := list.Clone()
	updated.Collaborators[userID] = store.Collaborator{
		UserID:     userID,
		UserName:   userName,
		Permission: rbac.PermissionView,
	}
	record := s.newRecord(list.ID, userID, userName, changelog.CollaboratorAddedPayload{
		UserID:     userID,
		UserName:   userName,
		Permission: rbac.PermissionView,
	})
	saved, err := s.store.UpdateList(ctx, updated, record)
	if err != nil {
		return nil, err
	}
	s.reindex(saved)
	return listPayload(saved), nil
}

// resolveCode looks a code up in the registry and verifies the hit against
// the stored list. A registry miss falls back to the share_code column, which
// covers codes issued before the registry was last flushed.
func (s *Service) resolveCode(ctx context.Context, code string) (store.SharedList, error) {
	invalid := domainError(http.StatusNotFound, "INVALID_SHARE_CODE", "share code is unknown or revoked", nil)

	listID, err := s.codes.Resolve(ctx, code)
	if err != nil {
		return store.SharedList{}, err
	}
	if listID == "" {
		list, err := s.store.GetListByShareCode(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.SharedList{}, invalid
			}
			return store.SharedList{}, err
		}
		return list, nil
	}

	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.SharedList{}, invalid
		}
		return store.SharedList{}, err
	}
	if !list.IsPublic || list.ShareCode != code {
		return store.SharedList{}, invalid
	}
	return list, nil
}

func (s *Service) AddCollaborator(ctx context.Context, listID, actorID, targetID, targetName, permission string) (map[string]any, error) {
	if strings.TrimSpace(targetID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
	}
	parsed, err := rbac.Parse(permission)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "permission must be view, edit or admin", nil)
	}

	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionManage); err != nil {
		return nil, err
	}
	if _, ok := list.Collaborators[targetID]; ok {
		return nil, domainError(http.StatusConflict, "DUPLICATE_COLLABORATOR", "user is already a collaborator", nil)
	}

	actor := list.Collaborators[actorID]
	updated := list.Clone()
	updated.Collaborators[targetID] = store.Collaborator{
		UserID:     targetID,
		UserName:   targetName,
		Permission: parsed,
	}
	record := s.newRecord(list.ID, actorID, actor.UserName, changelog.CollaboratorAddedPayload{
		UserID:     targetID,
		UserName:   targetName,
		Permission: parsed,
	})
	saved, err := s.store.UpdateList(ctx, updated, record)
	if err != nil {
		return nil, err
	}
	s.reindex(saved)
	return listPayload(saved), nil
}

func (s *Service) UpdateCollaboratorPermission(ctx context.Context, listID, actorID, targetID, permission string) (map[string]any, error) {
	parsed, err := rbac.Parse(permission)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "permission must be view, edit or admin", nil)
	}

	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionManage); err != nil {
		return nil, err
	}
	target, ok := list.Collaborators[targetID]
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "user is not a collaborator", nil)
	}
	if targetID == list.OwnerID {
		return nil, domainError(http.StatusConflict, "CANNOT_REMOVE_OWNER", "owner permission cannot be changed", nil)
	}
	if target.Permission == parsed {
		return listPayload(list), nil
	}

	actor := list.Collaborators[actorID]
	updated := list.Clone()
	updated.Collaborators[targetID] = store.Collaborator{
		UserID:     targetID,
		UserName:   target.UserName,
		Permission: parsed,
	}
	record := s.newRecord(list.ID, actorID, actor.UserName, changelog.PermissionChangedPayload{
		UserID:        targetID,
		OldPermission: target.Permission,
		NewPermission: parsed,
	})
	saved, err := s.store.UpdateList(ctx, updated, record)
	if err != nil {
		return nil, err
	}
	return listPayload(saved), nil
}

// RemoveCollaborator drops targetID from the list. Admins can remove anyone
// but the owner; every collaborator can remove themselves.
func (s *Service) RemoveCollaborator(ctx context.Context, listID, actorID, targetID string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if actorID != targetID {
		if err := requireMember(list, actorID, rbac.ActionManage); err != nil {
			return nil, err
		}
	} else if err := requireMember(list, actorID, rbac.ActionRead); err != nil {
		return nil, err
	}
	target, ok := list.Collaborators[targetID]
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "user is not a collaborator", nil)
	}
	if targetID == list.OwnerID {
		return nil, domainError(http.StatusConflict, "CANNOT_REMOVE_OWNER", "the owner cannot be removed", nil)
	}

	actor := list.Collaborators[actorID]
	updated := list.Clone()
	delete(updated.Collaborators, targetID)
	record := s.newRecord(list.ID, actorID, actor.UserName, changelog.CollaboratorRemovedPayload{
		UserID:   targetID,
		UserName: target.UserName,
	})
	saved, err := s.store.UpdateList(ctx, updated, record)
	if err != nil {
		return nil, err
	}
	s.reindex(saved)
	return listPayload(saved), nil
}

func (s *Service) AddTaskToSharedList(ctx context.Context, listID, actorID, taskID string) (map[string]any, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "taskId is required", nil)
	}

	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionEditTasks); err != nil {
		return nil, err
	}
	if list.HasTask(taskID) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "task is already on the list", nil)
	}

	actor := list.Collaborators[actorID]
	updated := list.Clone()
	updated.TaskIDs = append(updated.TaskIDs, taskID)
	record := s.newRecord(list.ID, actorID, actor.UserName, changelog.TaskCreatedPayload{TaskID: taskID})
	saved, err := s.store.UpdateList(ctx, updated, record)
	if err != nil {
		return nil, err
	}
	return listPayload(saved), nil
}

func (s *Service) RemoveTaskFromSharedList(ctx context.Context, listID, actorID, taskID string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionEditTasks); err != nil {
		return nil, err
	}
	if !list.HasTask(taskID) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "task is not on the list", nil)
	}

	actor := list.Collaborators[actorID]
	updated := list.Clone()
	taskIDs := make([]string, 0, len(updated.TaskIDs)-1)
	for _, id := range updated.TaskIDs {
		if id != taskID {
			taskIDs = append(taskIDs, id)
		}
	}
	updated.TaskIDs = taskIDs
	record := s.newRecord(list.ID, actorID, actor.UserName, changelog.TaskDeletedPayload{TaskID: taskID})
	saved, err := s.store.UpdateList(ctx, updated, record)
	if err != nil {
		return nil, err
	}
	return listPayload(saved), nil
}

// RecordTaskUpdated appends a taskUpdated record without touching the task
// list itself. Task content lives outside this service, so edits to a task
// only show up here as audit entries.
func (s *Service) RecordTaskUpdated(ctx context.Context, listID, actorID, taskID string) (map[string]any, error) {
	return s.recordTaskEvent(ctx, listID, actorID, taskID, changelog.TaskUpdated)
}

// RecordTaskCompleted appends a taskCompleted record, see RecordTaskUpdated.
func (s *Service) RecordTaskCompleted(ctx context.Context, listID, actorID, taskID string) (map[string]any, error) {
	return s.recordTaskEvent(ctx, listID, actorID, taskID, changelog.TaskCompleted)
}

func (s *Service) recordTaskEvent(ctx context.Context, listID, actorID, taskID string, changeType changelog.ChangeType) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionEditTasks); err != nil {
		return nil, err
	}
	if !list.HasTask(taskID) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "task is not on the list", nil)
	}

	var payload changelog.Payload
	switch changeType {
	case changelog.TaskCompleted:
		payload = changelog.TaskCompletedPayload{TaskID: taskID}
	default:
		payload = changelog.TaskUpdatedPayload{TaskID: taskID}
	}

	actor := list.Collaborators[actorID]
	record := s.newRecord(list.ID, actorID, actor.UserName, payload)
	saved, err := s.store.UpdateList(ctx, list.Clone(), record)
	if err != nil {
		return nil, err
	}
	return listPayload(saved), nil
}

func (s *Service) RenameList(ctx context.Context, listID, actorID, name, description string) (map[string]any, error) {
	listName := strings.TrimSpace(name)
	if listName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionManage); err != nil {
		return nil, err
	}

	updated := list.Clone()
	updated.Name = listName
	updated.Description = strings.TrimSpace(description)
	saved, err := s.store.UpdateList(ctx, updated, nil)
	if err != nil {
		return nil, err
	}
	s.reindex(saved)
	return listPayload(saved), nil
}

// SetListPublic toggles visibility. Going public issues a fresh share code;
// going private revokes the active one. A list that goes private and public
// again ends up with a new code, old codes never resolve again.
func (s *Service) SetListPublic(ctx context.Context, listID, actorID string, isPublic bool) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionManage); err != nil {
		return nil, err
	}
	if list.IsPublic == isPublic {
		return listPayload(list), nil
	}

	updated := list.Clone()
	updated.IsPublic = isPublic
	if isPublic {
		code, err := s.codes.Issue(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		updated.ShareCode = code
		saved, err := s.store.UpdateList(ctx, updated, nil)
		if err != nil {
			if releaseErr := s.codes.Release(ctx, code); releaseErr != nil {
				log.Printf("release share code %s after failed update: %v", code, releaseErr)
			}
			return nil, err
		}
		return listPayload(saved), nil
	}

	revoked := updated.ShareCode
	updated.ShareCode = ""
	saved, err := s.store.UpdateList(ctx, updated, nil)
	if err != nil {
		return nil, err
	}
	if revoked != "" {
		if err := s.codes.Release(ctx, revoked); err != nil {
			log.Printf("release revoked share code %s: %v", revoked, err)
		}
	}
	return listPayload(saved), nil
}

func (s *Service) GenerateShareableLink(ctx context.Context, listID, actorID string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if !list.IsPublic || list.ShareCode == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "list is not public", nil)
	}
	return map[string]any{
		"listId":    list.ID,
		"shareCode": list.ShareCode,
		"url":       sharecode.LinkFor(s.cfg.ShareBaseURL, list.ShareCode),
	}, nil
}

func (s *Service) GetChangeHistory(ctx context.Context, listID, actorID string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionRead); err != nil {
		return nil, err
	}
	records, err := s.store.ListChanges(ctx, listID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, map[string]any{
			"id":         record.ID,
			"userId":     record.UserID,
			"userName":   record.UserName,
			"changeType": string(record.Type),
			"changeData": record.Payload,
			"seq":        record.Seq,
			"timestamp":  record.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return map[string]any{
		"listId":  list.ID,
		"changes": items,
	}, nil
}

func (s *Service) ExportSharedTaskList(ctx context.Context, listID, actorID string, format export.Format) (*export.Result, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(list, actorID, rbac.ActionRead); err != nil {
		return nil, err
	}
	records, err := s.store.ListChanges(ctx, listID)
	if err != nil {
		return nil, err
	}

	result, err := export.Render(export.BuildSnapshot(list, records), format)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		go func(result export.Result) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.archive.Put(ctx, list.ID, result.Filename, result.ContentType, result.Data); err != nil {
				log.Printf("archive export for list %s: %v", list.ID, err)
			}
		}(*result)
	}
	return result, nil
}

func (s *Service) Search(q search.Query) search.Response {
	if s.index == nil {
		return search.Response{Results: []search.Result{}, Total: 0, Query: q.Text}
	}
	return s.index.Search(q)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingCodes(ctx context.Context) error {
	return s.codes.Ping(ctx)
}

func (s *Service) newRecord(listID, userID, userName string, payload changelog.Payload) *changelog.Record {
	return &changelog.Record{
		ID:       util.NewID("chg"),
		ListID:   listID,
		UserID:   userID,
		UserName: userName,
		Type:     payload.ChangeType(),
		Payload:  payload,
	}
}

func (s *Service) reindex(list store.SharedList) {
	if s.index == nil {
		return
	}
	collaboratorIDs := make([]string, 0, len(list.Collaborators))
	for id := range list.Collaborators {
		collaboratorIDs = append(collaboratorIDs, id)
	}
	s.index.IndexList(search.ListRecord{
		ID:              list.ID,
		Name:            list.Name,
		Description:     list.Description,
		OwnerID:         list.OwnerID,
		CollaboratorIDs: collaboratorIDs,
	})
}

// requireMember rejects callers that are not collaborators or hold a
// permission below what action needs. Non-members get the same error as
// under-privileged members, so membership is not leaked.
func requireMember(list store.SharedList, userID string, action rbac.Action) error {
	collab, ok := list.Collaborators[userID]
	if !ok || !rbac.Can(collab.Permission, action) {
		return domainError(http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to do that", nil)
	}
	return nil
}

func listPayload(list store.SharedList) map[string]any {
	collaborators := make(map[string]any, len(list.Collaborators))
	for id, collab := range list.Collaborators {
		collaborators[id] = map[string]any{
			"userId":     collab.UserID,
			"userName":   collab.UserName,
			"permission": string(collab.Permission),
		}
	}
	taskIDs := list.TaskIDs
	if taskIDs == nil {
		taskIDs = []string{}
	}
	var updatedAt any
	if list.UpdatedAt != nil {
		updatedAt = list.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"id":            list.ID,
		"name":          list.Name,
		"description":   list.Description,
		"ownerId":       list.OwnerID,
		"collaborators": collaborators,
		"taskIds":       taskIDs,
		"isPublic":      list.IsPublic,
		"shareCode":     nilIfEmpty(list.ShareCode),
		"version":       list.Version,
		"createdAt":     list.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":     updatedAt,
	}
}

// dedupeTaskIDs keeps the first occurrence of each task reference in order
// and drops blanks, so a created list never starts with duplicate entries.
func dedupeTaskIDs(taskIDs []string) []string {
	out := make([]string, 0, len(taskIDs))
	seen := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
