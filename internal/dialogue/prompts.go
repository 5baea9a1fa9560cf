package dialogue

import (
	"fmt"
	"strings"
	"time"
)

const (
	promptHelp         = "I can book a table, cancel a reservation, tell you about our menu or recommend a dish. You can also press 1 to book, 2 to cancel, 3 for the menu, 4 for recommendations or 0 for a member of staff."
	promptAnythingElse = "Would you like to book a table, or is there anything else I can help with?"
	promptYesNo        = "Please say yes or no."
	promptGoodbye      = "Thank you for calling. Goodbye!"
	promptHandoff      = "Let me connect you with a member of our staff. Please hold."
	promptApology      = "I'm sorry, I didn't catch that."
)

func (e *Engine) greeting() string {
	return fmt.Sprintf("Hello, thank you for calling %s. How can I help you today? %s", e.restaurantName(), promptHelp)
}

func askReservationSlot(slot string, offered []string) string {
	switch slot {
	case SlotName:
		return "May I have the name for the reservation?"
	case SlotPhone:
		return "What phone number can we reach you at?"
	case SlotPartySize:
		return "How many guests will be joining?"
	case SlotDate:
		return "What date would you like to come?"
	case SlotTime:
		if len(offered) > 0 {
			return fmt.Sprintf("What time would you like? We have tables at %s.", listJoin(offered))
		}
		return "What time would you like?"
	}
	return ""
}

func askCancellationSlot(slot string) string {
	switch slot {
	case SlotCancelName:
		return "Under what name is the reservation?"
	case SlotCancelDate:
		return "What date is the reservation for?"
	case SlotCancelPhoneOrTime:
		return "What phone number did you book with, or what time is the reservation?"
	}
	return ""
}

// spokenDate renders a date the way it is read back to callers.
func spokenDate(t time.Time) string {
	return t.Format("Monday, 2 January 2006")
}

func guests(n int) string {
	if n == 1 {
		return "1 guest"
	}
	return fmt.Sprintf("%d guests", n)
}

// listJoin joins items as "a, b and c".
func listJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func candidateLine(i int, c Candidate, loc *time.Location) string {
	at := c.StartAt.In(loc)
	return fmt.Sprintf("%d. %s, %s at %s, %s.", i+1, c.Name, at.Format("02.01.2006"), at.Format("15:04"), guests(c.PartySize))
}

func candidateList(cs []Candidate, loc *time.Location) string {
	lines := make([]string, len(cs))
	for i, c := range cs {
		lines[i] = candidateLine(i, c, loc)
	}
	return strings.Join(lines, " ")
}
