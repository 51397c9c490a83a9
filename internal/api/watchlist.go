package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Mutation is one state-changing request in replayable form. Everything the
// backend needs is captured at build time (URL, method, headers, body) except
// Authorization, which is re-derived at send time. The Idempotency-Key header
// is generated once per mutation so that an overlapping replay from two drain
// contexts is server-side dedupable.
type Mutation struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// newMutation builds a Mutation with a fresh idempotency key.
func newMutation(method, path string, body any) (Mutation, error) {
	var encoded []byte

	if body != nil {
		var err error

		encoded, err = json.Marshal(body)
		if err != nil {
			return Mutation{}, fmt.Errorf("api: encoding mutation body: %w", err)
		}
	}

	header := http.Header{}
	header.Set("Idempotency-Key", uuid.New().String())

	if encoded != nil {
		header.Set("Content-Type", "application/json")
	}

	return Mutation{Method: method, Path: path, Header: header, Body: encoded}, nil
}

// FetchWatchlist retrieves the full watchlist payload.
func (c *Client) FetchWatchlist(ctx context.Context) (*Watchlist, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/watchlist", nil, nil)
	if err != nil {
		return nil, err
	}

	var wl Watchlist
	if err := json.Unmarshal(body, &wl); err != nil {
		return nil, fmt.Errorf("api: decoding watchlist: %w", err)
	}

	return &wl, nil
}

// ListItems retrieves the current items of one list.
func (c *Client) ListItems(ctx context.Context, listID string) ([]Item, error) {
	path := "/api/lists/" + url.PathEscape(listID) + "/items"

	body, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("api: decoding list items: %w", err)
	}

	return items, nil
}

// toggleBody is the request payload for the watched-state endpoint.
type toggleBody struct {
	Watched bool `json:"watched"`
}

// copyMoveBody is the request payload for the copy and move endpoints.
type copyMoveBody struct {
	SourceList string `json:"sourceList"`
	ItemID     string `json:"itemId"`
	ItemType   string `json:"itemType"`
	TargetList string `json:"targetList"`
}

// ToggleWatched builds the id-addressed mutation that sets an item's watched
// state. Safe to replay: setting the same state twice is a no-op.
func ToggleWatched(itemType, itemID string, watched bool) (Mutation, error) {
	path := fmt.Sprintf("/api/items/%s/%s/watched", url.PathEscape(itemType), url.PathEscape(itemID))
	return newMutation(http.MethodPut, path, toggleBody{Watched: watched})
}

// DeleteItem builds the mutation that removes an item from the watchlist.
// Safe to replay: deleting an already-deleted item returns 404, which the
// drain treats as settled.
func DeleteItem(itemType, itemID string) (Mutation, error) {
	path := fmt.Sprintf("/api/items/%s/%s", url.PathEscape(itemType), url.PathEscape(itemID))
	return newMutation(http.MethodDelete, path, nil)
}

// CopyItem builds the mutation that copies an item into targetList.
func CopyItem(sourceList, itemID, itemType, targetList string) (Mutation, error) {
	return newMutation(http.MethodPost, "/api/lists/copy", copyMoveBody{
		SourceList: sourceList,
		ItemID:     itemID,
		ItemType:   itemType,
		TargetList: targetList,
	})
}

// MoveItem builds the mutation that moves an item from sourceList to
// targetList.
func MoveItem(sourceList, itemID, itemType, targetList string) (Mutation, error) {
	return newMutation(http.MethodPost, "/api/lists/move", copyMoveBody{
		SourceList: sourceList,
		ItemID:     itemID,
		ItemType:   itemType,
		TargetList: targetList,
	})
}

// RemoveFromList builds the mutation that removes an item from one list
// without touching other lists. Used by move-duplicate resolution
// ("remove from source only").
func RemoveFromList(listID, itemID, itemType string) (Mutation, error) {
	path := fmt.Sprintf("/api/lists/%s/items/%s/%s",
		url.PathEscape(listID), url.PathEscape(itemType), url.PathEscape(itemID))

	return newMutation(http.MethodDelete, path, nil)
}

// Send executes a mutation immediately. Thin wrapper kept separate from
// DoMutation for call-site clarity: Send is the first attempt, DoMutation
// is a queued replay.
func (c *Client) Send(ctx context.Context, m Mutation) ([]byte, error) {
	return c.Do(ctx, m.Method, m.Path, m.Header, m.Body)
}
