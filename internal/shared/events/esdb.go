package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"
	"github.com/lifeline-ems/dispatch/internal/shared/config"
)

const streamPrefix = "ems"

// ESDBJournal appends events to an EventStoreDB/KurrentDB instance.
type ESDBJournal struct {
	client *esdb.Client
}

// NewESDBJournal connects to the configured event store
func NewESDBJournal(cfg config.EventStoreConfig) (*ESDBJournal, error) {
	settings, err := esdb.ParseConnectionString(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse event store connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store client: %w", err)
	}

	return &ESDBJournal{client: client}, nil
}

func connectionString(cfg config.EventStoreConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	params := ""
	if cfg.Insecure {
		params = "?tls=false&tlsVerifyCert=false"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// Append writes the event to its stream.
// Stream name derives from the event: ems-<stream>, e.g. ems-emergency.
func (j *ESDBJournal) Append(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	eventID, err := uuid.Parse(event.ID.String())
	if err != nil {
		eventID = uuid.New()
	}

	stream := fmt.Sprintf("%s-%s", streamPrefix, event.Stream)

	_, err = j.client.AppendToStream(ctx, stream, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, esdb.EventData{
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		EventID:     eventID,
	})
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// Close shuts down the client connection
func (j *ESDBJournal) Close() error {
	return j.client.Close()
}
