package port

import (
	"context"
	"errors"

	"github.com/garyjia/quote-revision/internal/domain/entity"
)

// ErrInterpreterUnavailable is returned when the command interpreter cannot be reached
var ErrInterpreterUnavailable = errors.New("command interpreter unavailable")

// CommandInterpreter turns a transcript into a structured edit command.
// The current items are passed so the interpreter can name targets the matcher will find.
type CommandInterpreter interface {
	Interpret(ctx context.Context, transcript string, items []entity.QuoteItem) (*entity.VoiceEditCommand, error)
}

// ConversationNotifier posts messages to the contractor's conversation thread
type ConversationNotifier interface {
	Notify(ctx context.Context, threadID, text string) error
}

// QuoteExporter renders a quote into a downloadable document
type QuoteExporter interface {
	Export(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem, tmpl *entity.QuoteTemplate) ([]byte, error)
	ContentType() string
	FileExtension() string
}
