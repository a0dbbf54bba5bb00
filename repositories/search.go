package repositories

import (
	"chat-bridge/contract"
	"chat-bridge/domain"
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
)

// SearchIndex maintains a Bluge full-text index over message content for
// the operator tooling. It is fed best-effort on the write path; a failed
// index write is logged and never fails the store write it mirrors.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("room", message.RoomCode).StoreValue()).
		AddField(bluge.NewKeywordField("role", string(message.Role)).StoreValue())
	return s.writer.Update(doc.ID(), doc)
}

func (s *SearchIndex) Search(ctx context.Context, query string, limit int) ([]contract.SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	match := bluge.NewMatchQuery(query).SetField("content")
	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, match))
	if err != nil {
		return nil, err
	}

	var hits []contract.SearchHit
	for {
		next, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		hit := contract.SearchHit{Score: next.Score}
		err = next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "room":
				hit.RoomCode = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
