// Package pubsub owns the Pub/Sub v2 connection used by the outbox relay.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcp "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/localmarket/marketplace-backend/pkg/config"
	"github.com/localmarket/marketplace-backend/pkg/logger"
)

var (
	errNoProject = errors.New("gcp project id is required")
	errNoTopic   = errors.New("pubsub domain topic is required")
	errClosed    = errors.New("pubsub client not initialized")
)

// Client holds the connection and one long-lived publisher per topic, so
// batching and flow control carry across relay iterations.
type Client struct {
	conn    *gcp.Client
	project string
	domain  string

	mu   sync.Mutex
	pubs map[string]*gcp.Publisher
}

// Open connects and fails fast when the domain topic is missing.
func Open(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errNoProject
	}
	conn, err := gcp.NewClient(ctx, project, credentials(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub connect: %w", err)
	}
	c := &Client{conn: conn, project: project, domain: cfg.DomainTopic, pubs: map[string]*gcp.Publisher{}}
	if err := c.checkTopic(ctx, cfg.DomainTopic); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", cfg.DomainTopic), "pubsub.connected")
	}
	return c, nil
}

// credentials prefers inline JSON over a key file. With neither set the
// client uses application default credentials, or the emulator when
// PUBSUB_EMULATOR_HOST is present.
func credentials(cfg config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.ApplicationCredentials)}
	}
	return nil
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return errNoTopic
	}
	path := TopicPath(c.project, name)
	_, err := c.conn.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: path})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %s does not exist", path)
	default:
		return fmt.Errorf("lookup topic %s: %w", path, err)
	}
}

// Publisher returns the cached publisher for a topic ID or full path.
func (c *Client) Publisher(name string) *gcp.Publisher {
	if c == nil || c.conn == nil {
		return nil
	}
	path := TopicPath(c.project, name)
	if path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pubs[path]
	if !ok {
		p = c.conn.Publisher(path)
		c.pubs[path] = p
	}
	return p
}

// Ping re-checks the domain topic; used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errClosed
	}
	return c.checkTopic(ctx, c.domain)
}

// Close flushes every publisher before dropping the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.mu.Lock()
	for path, p := range c.pubs {
		p.Stop()
		delete(c.pubs, path)
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// TopicPath expands a topic ID under the project. Values already of the form
// projects/<p>/topics/<t> are returned as-is; blanks yield "".
func TopicPath(project, name string) string {
	name = strings.TrimSpace(name)
	project = strings.TrimSpace(project)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	case project == "":
		return ""
	}
	return "projects/" + project + "/topics/" + name
}
