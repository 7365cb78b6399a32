package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mail-chat-bridge/internal/config"
	"mail-chat-bridge/internal/domain/message"
	"mail-chat-bridge/internal/infrastructure/transport"
)

const (
	// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	scope          = "https://graph.microsoft.com/.default"
	selectFields   = "subject,from,bodyPreview,conversationId,internetMessageId,replyTo,receivedDateTime"
)

// APIError is a non-2xx answer from Graph.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("graph %d %s: %s", e.Status, e.Code, e.Message)
}

// Gateway implements message.Gateway against one Outlook mailbox.
type Gateway struct {
	client  *http.Client
	baseURL string
	userID  string
}

var _ message.Gateway = (*Gateway)(nil)

// NewGateway builds a Gateway whose client acquires app-only tokens with the
// client-credentials grant; the token source is reused across requests.
func NewGateway(ctx context.Context, cfg *config.Config) *Gateway {
	cc := &clientcredentials.Config{
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.GraphTenantID)),
		Scopes:       []string{scope},
	}
	// token and API requests share the logging transport
	ctx = context.WithValue(ctx, oauth2.HTTPClient, transport.Wrap(nil, "graph", cfg.HTTPLogBodies))
	return NewGatewayWithClient(cc.Client(ctx), DefaultBaseURL, cfg.GraphUserID)
}

// NewGatewayWithClient uses an already authorized client.
func NewGatewayWithClient(client *http.Client, baseURL, userID string) *Gateway {
	return &Gateway{client: client, baseURL: strings.TrimRight(baseURL, "/"), userID: userID}
}

type graphMessage struct {
	Subject          string `json:"subject"`
	BodyPreview      string `json:"bodyPreview"`
	ReceivedDateTime string `json:"receivedDateTime"`
	From             *struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
}

// Fetch gets the message projection used by the bot.
func (g *Gateway) Fetch(ctx context.Context, id message.ID) (*message.MailItem, error) {
	log.Printf("[graph] Fetch: %s", id)
	u := g.messageURL(id) + "?$select=" + selectFields
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var gm graphMessage
	if err := g.do(req, &gm); err != nil {
		return nil, fmt.Errorf("graph get message: %w", err)
	}
	item := &message.MailItem{
		ID:          id,
		Subject:     gm.Subject,
		BodyPreview: gm.BodyPreview,
		ReceivedAt:  gm.ReceivedDateTime,
	}
	if gm.From != nil {
		item.SenderName = gm.From.EmailAddress.Name
		item.SenderAddress = gm.From.EmailAddress.Address
	}
	return item, nil
}

// Reply posts text as a reply comment; Graph keeps it in the original thread.
func (g *Gateway) Reply(ctx context.Context, id message.ID, text string) error {
	log.Printf("[graph] Reply: %s", id)
	body, err := json.Marshal(map[string]string{"comment": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.messageURL(id)+"/reply", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := g.do(req, nil); err != nil {
		return fmt.Errorf("graph reply: %w", err)
	}
	return nil
}

func (g *Gateway) messageURL(id message.ID) string {
	return fmt.Sprintf("%s/users/%s/messages/%s", g.baseURL, url.PathEscape(g.userID), url.PathEscape(string(id)))
}

func (g *Gateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	return apiErr
}
