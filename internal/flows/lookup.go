package flows

import (
	"context"
	"strings"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/pkg/utils"
)

type PeerResult struct {
	PeerID string       `json:"peer_id"`
	Route  models.Route `json:"route"`
}

// FindPeer resolves an email address to a user and opens a one-to-one
// conversation with them. When several profiles share the address the first
// one wins.
func (o *Orchestrator) FindPeer(ctx context.Context, email string) (*PeerResult, error) {
	email = strings.TrimSpace(email)
	if !utils.IsValidEmail(email) {
		o.metrics.Flow("find_peer", "invalid")
		return nil, validation("email", "Please enter a valid email address")
	}
	log := o.log.With("flow", "find_peer", "email", email)

	found, err := o.profiles.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		log.Error(ctx, "directory query failed", "error", err)
		o.metrics.Lookup("error")
		o.metrics.Flow("find_peer", "directory_error")
		return nil, &Error{Kind: KindDirectory, Message: "Error searching for user: " + err.Error(), Err: err}
	}
	if len(found) == 0 {
		o.metrics.Lookup("not_found")
		o.metrics.Flow("find_peer", "not_found")
		return nil, &Error{Kind: KindNotFound, Field: "email", Message: "No user found with that email address"}
	}
	o.metrics.Lookup("found")

	peerID := firstID(found)
	if peerID == "" {
		o.metrics.Flow("find_peer", "directory_error")
		return nil, &Error{Kind: KindDirectory, Message: "Error finding user data"}
	}

	route, err := o.transport.OpenConversation(peerID, models.ConversationPeer)
	if err != nil {
		o.metrics.Flow("find_peer", "transport_error")
		return nil, transportFailure("", err)
	}
	log.Info(ctx, "peer found", "peer_id", peerID)
	o.metrics.Flow("find_peer", "ok")
	return &PeerResult{PeerID: peerID, Route: route}, nil
}

func firstID(profiles []models.Profile) string {
	for _, p := range profiles {
		if p.ID != "" {
			return p.ID
		}
	}
	return ""
}
