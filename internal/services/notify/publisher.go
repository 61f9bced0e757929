package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
)

type UserDirectory interface {
	GetSummaries(ctx context.Context, userIDs []int64) (map[int64]model.UserSummary, error)
}

type ItemDirectory interface {
	GetSummaries(ctx context.Context, itemIDs []int64) (map[int64]model.ItemSummary, error)
}

type PhotoResolver interface {
	PhotoURL(ctx context.Context, key string) (string, error)
}

type Publisher struct {
	dispatcher *Dispatcher
	users      UserDirectory
	items      ItemDirectory
	photos     PhotoResolver
	logger     *zap.Logger
}

type PublisherDependencies struct {
	Dispatcher *Dispatcher
	Users      UserDirectory
	Items      ItemDirectory
	Photos     PhotoResolver
	Logger     *zap.Logger
}

func NewPublisher(deps PublisherDependencies) *Publisher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		dispatcher: deps.Dispatcher,
		users:      deps.Users,
		items:      deps.Items,
		photos:     deps.Photos,
		logger:     logger,
	}
}

// MatchCreated announces a new match to both users. conversation.created is
// only sent when the conversation was created together with the match.
func (p *Publisher) MatchCreated(ctx context.Context, match model.Match, conversation model.Conversation, conversationCreated bool) {
	if p == nil || p.dispatcher == nil {
		return
	}

	p.dispatcher.Publish(ctx, string(events.TypeMatchCreated), func(runCtx context.Context) ([]events.Event, error) {
		users, err := p.userCards(runCtx, match.User1ID, match.User2ID)
		if err != nil {
			return nil, err
		}
		items, err := p.itemCards(runCtx, match.Item1ID, match.Item2ID)
		if err != nil {
			return nil, err
		}

		out := make([]events.Event, 0, 2)
		if conversationCreated && conversation.ID > 0 {
			out = append(out, events.ConversationCreated{
				ConversationID: conversation.ID,
				MatchID:        match.ID,
				User1:          users[match.User1ID],
				User2:          users[match.User2ID],
				CreatedAt:      conversation.CreatedAt,
			})
		}
		out = append(out, events.MatchCreated{
			MatchID:        match.ID,
			ConversationID: match.ConversationID,
			User1:          users[match.User1ID],
			User2:          users[match.User2ID],
			Item1:          items[match.Item1ID],
			Item2:          items[match.Item2ID],
			CreatedAt:      match.CreatedAt,
		})
		return out, nil
	})
}

func (p *Publisher) MessageSent(ctx context.Context, msg model.Message) {
	if p == nil || p.dispatcher == nil {
		return
	}

	p.dispatcher.Publish(ctx, string(events.TypeMessageSent), func(runCtx context.Context) ([]events.Event, error) {
		users, err := p.userCards(runCtx, msg.SenderID)
		if err != nil {
			return nil, err
		}

		return []events.Event{events.MessageSent{
			ConversationID: msg.ConversationID,
			Message: events.MessageBody{
				ID:         msg.ID,
				SenderID:   msg.SenderID,
				ReceiverID: msg.ReceiverID,
				Text:       msg.Text,
				CreatedAt:  msg.CreatedAt,
			},
			Sender: users[msg.SenderID],
		}}, nil
	})
}

func (p *Publisher) userCards(ctx context.Context, ids ...int64) (map[int64]events.UserCard, error) {
	cards := make(map[int64]events.UserCard, len(ids))
	for _, id := range ids {
		cards[id] = events.UserCard{ID: id}
	}
	if p.users == nil {
		return cards, nil
	}

	summaries, err := p.users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load user summaries: %w", err)
	}
	for id, s := range summaries {
		cards[id] = events.UserCard{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Photo:       p.photoURL(ctx, s.PhotoKey),
		}
	}
	return cards, nil
}

func (p *Publisher) itemCards(ctx context.Context, ids ...int64) (map[int64]events.ItemCard, error) {
	cards := make(map[int64]events.ItemCard, len(ids))
	for _, id := range ids {
		cards[id] = events.ItemCard{ID: id}
	}
	if p.items == nil {
		return cards, nil
	}

	summaries, err := p.items.GetSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load item summaries: %w", err)
	}
	for id, s := range summaries {
		cards[id] = events.ItemCard{
			ID:          s.ID,
			OwnerUserID: s.OwnerUserID,
			Title:       s.Title,
			Photo:       p.photoURL(ctx, s.PhotoKey),
		}
	}
	return cards, nil
}

func (p *Publisher) photoURL(ctx context.Context, key string) string {
	if key == "" || p.photos == nil {
		return key
	}
	u, err := p.photos.PhotoURL(ctx, key)
	if err != nil {
		p.logger.Debug("resolve photo url failed", zap.String("photo_key", key), zap.Error(err))
		return ""
	}
	return u
}
