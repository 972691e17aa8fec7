package ws

import "testing"

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub()

	hub.AddClient("conn:1", nil, ConnInfo{UserID: 1})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected room to be created")
	}
	if len(hub.connInfo["conn:1"]) != 1 {
		t.Fatalf("expected conn info to be tracked")
	}

	hub.RemoveClient("conn:1", nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected room to be removed")
	}
	if len(hub.connInfo) != 0 {
		t.Fatalf("expected conn info to be dropped")
	}
}

func TestHubRoomsAreIndependent(t *testing.T) {
	hub := NewHub()

	hub.AddClient("conn:1", nil, ConnInfo{UserID: 1})
	hub.AddClient("trip:2", nil, ConnInfo{UserID: 1})
	if len(hub.rooms) != 2 {
		t.Fatalf("expected two rooms, got %d", len(hub.rooms))
	}

	hub.RemoveClient("conn:1", nil)
	if _, ok := hub.rooms["trip:2"]; !ok {
		t.Fatalf("expected trip room to survive")
	}
}
