package model

import (
	"fmt"
	"strings"
)

// SubscriptionRef is either a bare subscription name or a fully-qualified
// projects/{project}/subscriptions/{name} resource path.
type SubscriptionRef string

// Path returns the fully-qualified resource path, qualifying bare names with project.
func (s SubscriptionRef) Path(project string) string {
	return qualify(string(s), project, "subscriptions")
}

// TopicRef is either a bare topic name or a projects/{project}/topics/{name} path.
type TopicRef string

// Path returns the fully-qualified resource path, qualifying bare names with project.
func (t TopicRef) Path(project string) string {
	return qualify(string(t), project, "topics")
}

func qualify(name, project, collection string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "projects/") {
		return name
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, collection, name)
}

// PullRequest describes a single synchronous pull.
type PullRequest struct {
	Subscription        SubscriptionRef
	MaxMessages         int
	AllowExcessMessages bool
}

// AcknowledgeRequest carries ack IDs for one subscription. An empty AckIDs list is a no-op.
type AcknowledgeRequest struct {
	Subscription SubscriptionRef
	AckIDs       []string
}

// SubscriptionPage is one page of a topic's subscriptions plus the continuation token.
type SubscriptionPage struct {
	Subscriptions []string `json:"subscriptions"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}
