package notify

import "testing"

func TestTopic(t *testing.T) {
	cases := map[EventType]string{
		EventReservationCreated:   "restaurant/reservations/created",
		EventReservationEscalated: "restaurant/reservations/escalated",
		EventReservationCancelled: "restaurant/reservations/cancelled",
		EventCallHandoff:          "restaurant/calls/handoff",
	}
	for ev, want := range cases {
		if got := Topic("restaurant/", ev); got != want {
			t.Errorf("Topic(%s) = %s, want %s", ev, got, want)
		}
	}
}
