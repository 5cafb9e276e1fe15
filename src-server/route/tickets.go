package route

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"parish/src-server/mailer"
	"parish/src-server/model"
)

type TicketRespBody struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url,omitempty"`
	ReportedBy  int64  `json:"reported_by"`
	Reply       string `json:"reply"`
	ReceivedAt  int64  `json:"received_at"`
	FinishedAt  int64  `json:"finished_at,omitempty"`
	IsDone      bool   `json:"is_done"`
	IsPriority  bool   `json:"is_priority"`
}

func ticketRespBody(ticket *model.Ticket) TicketRespBody {
	return TicketRespBody{
		ID:          ticket.ID,
		Description: ticket.Description,
		PhotoURL:    fileURL(ticket.PhotoPath),
		ReportedBy:  ticket.ReportedBy,
		Reply:       ticket.Reply,
		ReceivedAt:  ticket.ReceivedAt,
		FinishedAt:  ticket.FinishedAt,
		IsDone:      ticket.IsDone,
		IsPriority:  ticket.IsPriority,
	}
}

func Tickets(muxer *http.ServeMux, app *App) {
	// report a problem, multipart form: description, photo
	muxer.HandleFunc("POST /tickets", AuthMiddleware(app, "", func(w http.ResponseWriter, r *http.Request) {
		identity := GetRequestContext(r).Identity
		photo, err := app.storePhoto(r.Context(), r)
		if err != nil {
			writeError(w, err)
			return
		}
		ticket := &model.Ticket{
			Description: r.FormValue("description"),
			PhotoPath:   photo,
			ReportedBy:  identity.UserID,
			ReceivedAt:  app.now().UTC().Unix(),
		}
		if err := ticket.Insert(r.Context(), app.BunDB); err != nil {
			if photo != "" {
				app.Store.Discard(photo)
			}
			writeError(w, err)
			return
		}

		// the ticket is saved either way
		if adminEmail := app.Config.GetAdminEmail(); adminEmail != "" {
			if err := app.Mail.Send(r.Context(), mailer.Message{
				To:      adminEmail,
				Subject: fmt.Sprintf("New ticket #%d from %s", ticket.ID, identity.UserName),
				Body:    ticket.Description,
				URL:     app.Config.GetPublicURL() + "/tickets",
			}); err != nil {
				slog.Warn("can't notify about a new ticket", "ticket", ticket.ID, "error", err)
			}
		}
		writeJSON(w, http.StatusCreated, ticketRespBody(ticket))
	}))

	// open tickets, ?done=true for the archive
	muxer.HandleFunc("GET /tickets", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		done, _ := strconv.ParseBool(r.URL.Query().Get("done"))
		tickets, err := model.ListTickets(r.Context(), app.BunDB, done)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]TicketRespBody, 0, len(tickets))
		for i := range tickets {
			respBody = append(respBody, ticketRespBody(&tickets[i]))
		}
		writeJSON(w, http.StatusOK, respBody)
	}))

	type StatsRespBody struct {
		Open            int    `json:"open"`
		Done            int    `json:"done"`
		AverageOpen     string `json:"average_open,omitempty"`
		AverageFinished string `json:"average_finished,omitempty"`
	}

	muxer.HandleFunc("GET /tickets/stats", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		var respBody StatsRespBody
		var err error
		if respBody.Open, err = model.CountTickets(r.Context(), app.BunDB, false); err != nil {
			writeError(w, err)
			return
		}
		if respBody.Done, err = model.CountTickets(r.Context(), app.BunDB, true); err != nil {
			writeError(w, err)
			return
		}
		openFor, ok, err := model.AverageOpenDuration(r.Context(), app.BunDB, app.now())
		if err != nil {
			writeError(w, err)
			return
		}
		if ok {
			respBody.AverageOpen = model.FormatDuration(openFor)
		}
		finishedIn, ok, err := model.AverageFinishDuration(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		if ok {
			respBody.AverageFinished = model.FormatDuration(finishedIn)
		}
		writeJSON(w, http.StatusOK, respBody)
	}))

	type ReplyReqBody struct {
		Reply string `json:"reply"`
	}

	muxer.HandleFunc("POST /tickets/{id}/reply", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		var reqBody ReplyReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		if err := model.ReplyTicket(r.Context(), app.BunDB, id, reqBody.Reply); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	muxer.HandleFunc("POST /tickets/{id}/done", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DoneTicket(r.Context(), app.BunDB, id, app.now()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	muxer.HandleFunc("POST /tickets/{id}/priority", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.SetPriorityTicket(r.Context(), app.BunDB, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	muxer.HandleFunc("DELETE /tickets/{id}", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DeleteTicket(r.Context(), app.BunDB, id, app.Store); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}
