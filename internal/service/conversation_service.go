package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/apperr"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/repository"
)

// ConversationService is the conversation registry: it owns conversation
// identity, membership and the moderation flags (blocked, archived, locked)
type ConversationService struct {
	convRepo repository.ConversationStore
}

func NewConversationService(convRepo repository.ConversationStore) *ConversationService {
	return &ConversationService{convRepo: convRepo}
}

// Create creates a direct or group conversation. A direct conversation whose
// member pair already exists fails with a conflict carrying the existing id,
// so callers can reuse it instead of erroring out.
func (s *ConversationService) Create(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error) {
	members := dedupeIDs(req.MemberIDs)
	if len(members) < 2 {
		return nil, apperr.Validation("a conversation requires at least 2 distinct members")
	}
	if !req.IsGroup && len(members) != 2 {
		return nil, apperr.Validation("a direct conversation requires exactly 2 members")
	}

	conv := &model.Conversation{
		IsGroup:     req.IsGroup,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
	}
	if !req.IsGroup {
		key := model.DirectKey(members[0], members[1])
		conv.DirectKey = &key
	}
	for _, id := range members {
		conv.Members = append(conv.Members, model.ConversationMember{UserID: id})
	}

	if err := s.convRepo.Create(ctx, conv); err != nil {
		if !req.IsGroup && errors.Is(err, repository.ErrDuplicate) {
			existing, ferr := s.convRepo.FindByDirectKey(ctx, *conv.DirectKey)
			if ferr != nil {
				return nil, ferr
			}
			return nil, apperr.Conflict(existing.ID, "a direct conversation between these members already exists")
		}
		return nil, err
	}

	return s.convRepo.FindByID(ctx, conv.ID)
}

// GetOrCreateDirect atomically resolves the direct conversation between two
// users, creating it when absent. A lost creation race (two concurrent first
// messages between the same pair) re-reads the winner's row.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, a, b uuid.UUID) (*model.Conversation, bool, error) {
	if a == b {
		return nil, false, apperr.Validation("a direct conversation requires two distinct members")
	}
	key := model.DirectKey(a, b)

	conv, err := s.convRepo.FindByDirectKey(ctx, key)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	conv = &model.Conversation{
		DirectKey: &key,
		Members: []model.ConversationMember{
			{UserID: a},
			{UserID: b},
		},
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			conv, err = s.convRepo.FindByDirectKey(ctx, key)
			return conv, false, err
		}
		return nil, false, err
	}
	return conv, true, nil
}

// Get returns a conversation to one of its members
func (s *ConversationService) Get(ctx context.Context, convID, actorID uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("conversation %s not found", convID)
		}
		return nil, err
	}
	if !conv.HasMember(actorID) {
		return nil, apperr.Forbidden("you are not a member of this conversation")
	}
	return conv, nil
}

// List returns the actor's conversations, hiding archived ones unless asked
func (s *ConversationService) List(ctx context.Context, actorID uuid.UUID, includeArchived bool) ([]model.Conversation, error) {
	return s.convRepo.ListForUser(ctx, actorID, includeArchived)
}

// Update applies a partial patch to title/description/image/archived/locked
func (s *ConversationService) Update(ctx context.Context, convID uuid.UUID, patch model.UpdateConversationRequest) (*model.Conversation, error) {
	fields := map[string]interface{}{}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Image != nil {
		fields["image"] = *patch.Image
	}
	if patch.Archived != nil {
		fields["archived"] = *patch.Archived
	}
	if patch.Locked != nil {
		fields["locked"] = *patch.Locked
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("patch contains no updatable fields")
	}

	if err := s.convRepo.UpdateFields(ctx, convID, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("conversation %s not found", convID)
		}
		return nil, err
	}
	return s.convRepo.FindByID(ctx, convID)
}

// AddMember adds a user to a group conversation. Blocked users cannot
// re-join; direct conversations keep their member pair for life.
func (s *ConversationService) AddMember(ctx context.Context, convID, userID uuid.UUID) error {
	conv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("conversation %s not found", convID)
		}
		return err
	}
	if !conv.IsGroup {
		return apperr.Validation("direct conversation membership cannot change")
	}

	member, err := s.convRepo.GetMember(ctx, convID, userID)
	if err == nil && member.Blocked {
		return apperr.Forbidden("user is blocked from this conversation")
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	return s.convRepo.AddMember(ctx, convID, userID)
}

// RemoveMember removes a user from a group conversation
func (s *ConversationService) RemoveMember(ctx context.Context, convID, userID uuid.UUID) error {
	conv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("conversation %s not found", convID)
		}
		return err
	}
	if !conv.IsGroup {
		return apperr.Validation("direct conversation membership cannot change")
	}
	return s.convRepo.RemoveMember(ctx, convID, userID)
}

// BlockMember adds a user to the conversation's blocked set. Idempotent.
func (s *ConversationService) BlockMember(ctx context.Context, convID, userID uuid.UUID) error {
	return s.setBlocked(ctx, convID, userID, true)
}

// UnblockMember removes a user from the conversation's blocked set. Idempotent.
func (s *ConversationService) UnblockMember(ctx context.Context, convID, userID uuid.UUID) error {
	return s.setBlocked(ctx, convID, userID, false)
}

func (s *ConversationService) setBlocked(ctx context.Context, convID, userID uuid.UUID, blocked bool) error {
	if _, err := s.convRepo.FindByID(ctx, convID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("conversation %s not found", convID)
		}
		return err
	}
	return s.convRepo.SetBlocked(ctx, convID, userID, blocked)
}

// IsWritable reports whether an actor may post into a conversation: it must
// not be locked, the actor must be a current member, and the actor must not
// be blocked. Every call consults the store so a moderation change applied
// concurrently with a send is never ignored.
func (s *ConversationService) IsWritable(ctx context.Context, convID, actorID uuid.UUID) (bool, error) {
	conv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, apperr.NotFound("conversation %s not found", convID)
		}
		return false, err
	}
	if conv.Locked {
		return false, nil
	}

	member, err := s.convRepo.GetMember(ctx, convID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !member.Blocked, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
