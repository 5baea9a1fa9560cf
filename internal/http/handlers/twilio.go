package handlers

import (
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/restaurant-voice/backend/internal/dialogue"
)

const promptTechnicalProblem = "I'm sorry, we are having technical difficulties. Please call us again later."

// webhook carries the Twilio voice parameters this service reads.
type webhook struct {
	CallSid      string `form:"CallSid" validate:"required,max=64"`
	From         string `form:"From" validate:"max=64"`
	To           string `form:"To" validate:"max=64"`
	SpeechResult string `form:"SpeechResult" validate:"max=2000"`
	Digits       string `form:"Digits" validate:"max=32"`
	CallStatus   string `form:"CallStatus" validate:"max=32"`
	CallDuration int    `form:"CallDuration" validate:"gte=0"`
}

type twiml struct {
	XMLName  xml.Name     `xml:"Response"`
	Gather   *twimlGather `xml:"Gather,omitempty"`
	Say      []twimlSay   `xml:"Say,omitempty"`
	Dial     *twimlDial   `xml:"Dial,omitempty"`
	Redirect *twimlURL    `xml:"Redirect,omitempty"`
	Hangup   *struct{}    `xml:"Hangup,omitempty"`
}

type twimlGather struct {
	Input         string     `xml:"input,attr"`
	Action        string     `xml:"action,attr"`
	Method        string     `xml:"method,attr"`
	SpeechTimeout string     `xml:"speechTimeout,attr"`
	Language      string     `xml:"language,attr,omitempty"`
	Say           []twimlSay `xml:"Say"`
}

type twimlSay struct {
	Voice    string `xml:"voice,attr,omitempty"`
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type twimlDial struct {
	Number string `xml:",chardata"`
}

type twimlURL struct {
	Method string `xml:"method,attr"`
	URL    string `xml:",chardata"`
}

// @Summary Incoming call
// @Description Twilio voice webhook. Starts the dialogue and answers with the greeting.
// @Tags twilio
// @Accept x-www-form-urlencoded
// @Produce xml
// @Param CallSid formData string true "Call SID"
// @Param From formData string false "Caller number"
// @Param To formData string false "Dialled number"
// @Success 200 {string} string "TwiML"
// @Router /twilio/voice [post]
func (h *Handler) TwilioVoice(c *gin.Context) {
	form, ok := h.bindWebhook(c)
	if !ok {
		return
	}
	reply, err := h.Sessions.Turn(c.Request.Context(), form.CallSid, form.From, form.To, "")
	h.respond(c, form.CallSid, reply, err)
}

// @Summary Dialogue turn
// @Description Twilio Gather callback. Runs one dialogue turn on the recognized speech or keypad digits.
// @Tags twilio
// @Accept x-www-form-urlencoded
// @Produce xml
// @Param CallSid formData string true "Call SID"
// @Param SpeechResult formData string false "Recognized speech"
// @Param Digits formData string false "Keypad digits"
// @Success 200 {string} string "TwiML"
// @Router /twilio/step [post]
func (h *Handler) TwilioStep(c *gin.Context) {
	form, ok := h.bindWebhook(c)
	if !ok {
		return
	}
	utterance := strings.TrimSpace(form.SpeechResult)
	if utterance == "" {
		utterance = strings.TrimSpace(form.Digits)
	}
	reply, err := h.Sessions.Turn(c.Request.Context(), form.CallSid, form.From, form.To, utterance)
	h.respond(c, form.CallSid, reply, err)
}

// @Summary Call status
// @Description Twilio status callback. Final statuses close the call log and drop the session.
// @Tags twilio
// @Accept x-www-form-urlencoded
// @Param CallSid formData string true "Call SID"
// @Param CallStatus formData string true "Call status"
// @Param CallDuration formData int false "Duration in seconds"
// @Success 204
// @Router /twilio/status [post]
func (h *Handler) TwilioStatus(c *gin.Context) {
	form, ok := h.bindWebhook(c)
	if !ok {
		return
	}
	if !finalCallStatus(form.CallStatus) {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.Sessions.End(c.Request.Context(), form.CallSid, form.CallStatus, form.CallDuration); err != nil {
		h.Logger.Warn().Err(err).Str("call_sid", form.CallSid).Msg("end call failed")
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bindWebhook(c *gin.Context) (webhook, bool) {
	var form webhook
	if err := c.ShouldBind(&form); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid webhook payload", err.Error())
		return form, false
	}
	if err := h.Validator.Struct(form); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid webhook payload", err.Error())
		return form, false
	}
	return form, true
}

// respond renders a dialogue reply as TwiML. A failed turn answers 200 with
// an apology and a hangup.
func (h *Handler) respond(c *gin.Context, callSID string, reply dialogue.Reply, err error) {
	if err != nil {
		h.Logger.Error().Err(err).Str("call_sid", callSID).Msg("dialogue turn failed")
		writeTwiML(c, twiml{Say: []twimlSay{h.say(promptTechnicalProblem)}, Hangup: &struct{}{}})
		return
	}

	switch {
	case reply.Handoff && h.Voice.OperatorPhone != "":
		writeTwiML(c, twiml{Say: []twimlSay{h.say(reply.Text)}, Dial: &twimlDial{Number: h.Voice.OperatorPhone}})
	case reply.EndSession:
		writeTwiML(c, twiml{Say: []twimlSay{h.say(reply.Text)}, Hangup: &struct{}{}})
	default:
		step := h.url("/twilio/step")
		writeTwiML(c, twiml{
			Gather: &twimlGather{
				Input:         "speech dtmf",
				Action:        step,
				Method:        http.MethodPost,
				SpeechTimeout: "auto",
				Language:      h.Voice.Language,
				Say:           []twimlSay{h.say(reply.Text)},
			},
			Redirect: &twimlURL{Method: http.MethodPost, URL: step},
		})
	}
}

func (h *Handler) say(text string) twimlSay {
	return twimlSay{Voice: h.Voice.Voice, Language: h.Voice.Language, Text: text}
}

func (h *Handler) url(path string) string {
	return strings.TrimRight(h.Voice.PublicBaseURL, "/") + path
}

func writeTwiML(c *gin.Context, doc twiml) {
	body, err := xml.Marshal(doc)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", append([]byte(xml.Header), body...))
}

func finalCallStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}
