package dialogue

import (
	"fmt"
	"strings"

	"github.com/restaurant-voice/backend/internal/service"
)

const recommendCount = 3

func (e *Engine) menuAnswer(s *CallSession, in *input) step {
	text := in.take()
	s.Completed = true
	if e.Menu == nil {
		return say("I'm sorry, I can't read out the menu right now. " + promptAnythingElse)
	}
	var msg string
	prefs := service.ParsePreferences(text)
	if cat, ok := e.Menu.CategoryIn(text); ok {
		var items []service.MenuItem
		for _, it := range cat.Items {
			if it.Available {
				items = append(items, it)
			}
		}
		msg = fmt.Sprintf("Our %s are %s.", strings.ToLower(cat.Name), listJoin(e.itemNames(items)))
	} else if !prefs.Empty() {
		items := e.Menu.Filter(prefs)
		if len(items) == 0 {
			msg = "I'm afraid nothing on our menu matches that."
		} else {
			msg = fmt.Sprintf("We can offer %s.", listJoin(e.itemNames(items)))
		}
	} else {
		sum := e.Menu.Summary()
		cats := make([]string, len(sum.Categories))
		for i, c := range sum.Categories {
			cats[i] = strings.ToLower(c)
		}
		msg = fmt.Sprintf("We have %d dishes on the menu across %s, priced from %s to %s.",
			sum.ItemCount, listJoin(cats), service.FormatPrice(sum.MinPrice, sum.Currency), service.FormatPrice(sum.MaxPrice, sum.Currency))
	}
	return say(msg + " " + promptAnythingElse)
}

func (e *Engine) recommend(s *CallSession, in *input) step {
	text := in.take()
	s.Completed = true
	if e.Menu == nil {
		return say("I'm sorry, I can't make recommendations right now. " + promptAnythingElse)
	}
	prefs := service.ParsePreferences(text)
	items := e.Menu.Recommend(prefs, recommendCount)
	msg := fmt.Sprintf("I'd recommend %s.", listJoin(e.itemNames(items)))
	if len(items) == 0 {
		items = e.Menu.Recommend(service.Preferences{}, recommendCount)
		msg = fmt.Sprintf("I couldn't find a dish matching that, but our chef recommends %s.", listJoin(e.itemNames(items)))
	}
	return say(msg + " " + promptAnythingElse)
}

func (e *Engine) itemNames(items []service.MenuItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = fmt.Sprintf("%s for %s", it.Name, service.FormatPrice(it.Price, e.Menu.Currency))
	}
	return out
}
