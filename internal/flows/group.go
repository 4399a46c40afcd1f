package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/pkg/utils"
)

// Notice is a non-blocking message for the user.
type Notice struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// GroupResult describes a created group. When CreateGroup fails after the
// lookups ran, a GroupResult holding only Notices is returned with the error.
type GroupResult struct {
	Group   *models.Group `json:"group,omitempty"`
	Route   models.Route  `json:"route"`
	Message string        `json:"message,omitempty"`
	Notices []Notice      `json:"notices,omitempty"`
}

type lookupOutcome struct {
	index int
	email string
	ids   []string
	err   error
}

// CreateGroup resolves a comma-separated list of member emails in parallel,
// then creates a group holding every resolved member plus the caller.
func (o *Orchestrator) CreateGroup(ctx context.Context, selfID, name, emailList string) (*GroupResult, error) {
	name = strings.TrimSpace(name)
	emailList = strings.TrimSpace(emailList)
	if name == "" || emailList == "" {
		o.metrics.Flow("create_group", "invalid")
		return nil, validation("", "Please fill in Group Name and User Emails")
	}

	emails := ParseEmailList(emailList)
	if len(emails) == 0 {
		o.metrics.Flow("create_group", "invalid")
		return nil, validation("emails", "Please enter valid email addresses")
	}

	log := o.log.With("flow", "create_group", "user_id", selfID, "group_name", name)
	log.Info(ctx, "looking up members", "count", len(emails))

	outcomes := o.lookupAll(ctx, emails)

	var ids []string
	var notices []Notice
	for _, out := range outcomes {
		switch {
		case out.err != nil:
			log.Warn(ctx, "member lookup failed", "email", out.email, "error", out.err)
			o.metrics.Lookup("error")
			notices = append(notices, Notice{Message: "Error looking up user for email " + out.email, Email: out.email})
		case len(out.ids) == 0:
			o.metrics.Lookup("not_found")
			notices = append(notices, Notice{Message: "User with email " + out.email + " not found", Email: out.email})
		default:
			o.metrics.Lookup("found")
			ids = append(ids, out.ids...)
		}
	}

	members := dedupe(ids)
	if len(members) == 0 {
		o.metrics.Flow("create_group", "not_found")
		return &GroupResult{Notices: notices}, &Error{Kind: KindNotFound, Message: "No users found with provided emails. Group not created."}
	}
	members = withMember(members, selfID)

	groupID := o.newGroupID(ctx)
	group, inviteErrs, err := o.transport.CreateGroup(ctx, selfID, name, groupID, members)
	if err != nil {
		fe := transportFailure("", err)
		log.Error(ctx, "group creation failed", "group_id", groupID, "code", fe.Code, "error", err)
		o.metrics.Flow("create_group", "transport_error")
		return &GroupResult{Notices: notices}, fe
	}
	for _, ie := range inviteErrs {
		notices = append(notices, Notice{
			Message: fmt.Sprintf("Could not add user %s to the group (code %d)", ie.UserID, ie.Code),
			UserID:  ie.UserID,
		})
	}

	route, err := o.transport.OpenConversation(group.ID, models.ConversationGroup)
	if err != nil {
		o.metrics.Flow("create_group", "transport_error")
		return &GroupResult{Group: group, Notices: notices}, transportFailure("", err)
	}

	log.Info(ctx, "group created", "group_id", group.ID, "members", len(group.MemberIDs))
	o.metrics.Flow("create_group", "ok")
	return &GroupResult{
		Group:   group,
		Route:   route,
		Message: "Group created!",
		Notices: notices,
	}, nil
}

// lookupAll queries the directory for every email concurrently and returns once
// all of them have reported, in input order.
func (o *Orchestrator) lookupAll(ctx context.Context, emails []string) []lookupOutcome {
	results := make(chan lookupOutcome, len(emails))
	for i, email := range emails {
		go func(i int, email string) {
			out := lookupOutcome{index: i, email: email}
			found, err := o.profiles.FindByEmail(ctx, utils.NormalizeEmail(email))
			if err != nil {
				out.err = err
			}
			for _, p := range found {
				if p.ID != "" {
					out.ids = append(out.ids, p.ID)
				}
			}
			results <- out
		}(i, email)
	}

	outcomes := make([]lookupOutcome, len(emails))
	for range emails {
		out := <-results
		outcomes[out.index] = out
	}
	return outcomes
}

func (o *Orchestrator) newGroupID(ctx context.Context) string {
	key, err := o.profiles.NewKey(ctx)
	if err != nil || key == "" {
		o.log.Warn(ctx, "directory key unavailable, using uuid", "error", err)
		return uuid.NewString()
	}
	return key
}

// ParseEmailList splits a comma-separated list, trims every entry and drops
// empty or malformed addresses.
func ParseEmailList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part != "" && utils.IsValidEmail(part) {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// withMember appends id unless it is already present.
func withMember(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
