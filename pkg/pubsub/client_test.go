package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmarket/marketplace-backend/pkg/config"
)

func TestTopicPath(t *testing.T) {
	cases := map[string]struct {
		project, name, want string
	}{
		"short id":       {"lm-dev", "domain", "projects/lm-dev/topics/domain"},
		"full path kept": {"lm-dev", "projects/other/topics/domain", "projects/other/topics/domain"},
		"trimmed":        {" lm-dev ", " domain ", "projects/lm-dev/topics/domain"},
		"blank name":     {"lm-dev", "  ", ""},
		"no project":     {"", "domain", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, TopicPath(tc.project, tc.name))
		})
	}
}

func TestOpenRequiresProject(t *testing.T) {
	_, err := Open(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{DomainTopic: "domain"}, nil)
	require.ErrorIs(t, err, errNoProject)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("domain"))
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errClosed)
}

func TestCredentialsPreferInlineJSON(t *testing.T) {
	assert.Len(t, credentials(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/key.json"}), 1)
	assert.Len(t, credentials(config.GCPConfig{ApplicationCredentials: "/key.json"}), 1)
	assert.Empty(t, credentials(config.GCPConfig{CredentialsJSON: "  "}))
}
