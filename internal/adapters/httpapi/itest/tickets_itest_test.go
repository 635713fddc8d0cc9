package itest

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"
)

type userBody struct {
	User struct {
		Id    string   `json:"id"`
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

func register(t *testing.T, srv *testServer, name string) string {
	t.Helper()
	status, body, _ := srv.doJSON(t, http.MethodPost, "/auth/register", actor{}, map[string]any{
		"name":     name,
		"email":    uniqueEmail(name),
		"password": "s3cret-pass",
		"cpf":      randomCPF(),
	})
	requireStatus(t, status, body, http.StatusCreated)
	u := mustUnmarshal[userBody](t, body)
	if u.User.Id == "" {
		t.Fatalf("expected user id; body=%s", string(body))
	}
	return u.User.Id
}

func TestTicketSales_ITest(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			// Missing subject => 401
			{
				status, body, hdr := srv.doJSON(t, http.MethodGet, "/users/me", actor{}, nil)
				requireErrorCode(t, status, body, http.StatusUnauthorized, "UNAUTHORIZED")
				requireHeaderPresent(t, hdr, "Content-Type")
			}

			ownerID := register(t, srv, "owner")
			riderID := register(t, srv, "rider")
			ownerAsPassenger := actor{subject: ownerID, role: "PASSENGER"}
			owner := actor{subject: ownerID, role: "COMPANY"}
			rider := actor{subject: riderID, role: "PASSENGER"}

			var companyID string
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/companies", ownerAsPassenger, map[string]any{
					"cnpj":      randomCNPJ(),
					"tradeName": "Via Sul",
					"legalName": "Via Sul Transportes Ltda",
				})
				requireStatus(t, status, body, http.StatusCreated)
				companyID = mustUnmarshal[struct {
					Company struct {
						Id      string `json:"id"`
						OwnerId string `json:"ownerId"`
					} `json:"company"`
				}](t, body).Company.Id
			}

			// Owning a company grants the COMPANY role.
			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/users/me", ownerAsPassenger, nil)
				requireStatus(t, status, body, http.StatusOK)
				me := mustUnmarshal[userBody](t, body)
				found := false
				for _, r := range me.User.Roles {
					found = found || r == "COMPANY"
				}
				if !found {
					t.Fatalf("expected COMPANY role; roles=%v", me.User.Roles)
				}
			}

			// Another user's company is invisible.
			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/companies/"+companyID, actor{subject: riderID, role: "COMPANY"}, nil)
				requireErrorCode(t, status, body, http.StatusNotFound, "COMPANY_NOT_FOUND")
			}

			origin := fmt.Sprintf("Origin %d", time.Now().UnixNano())
			departure := srv.clock.Now().Add(72 * time.Hour)
			var tripID string
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/companies/"+companyID+"/trips", owner, map[string]any{
					"origin":      origin,
					"destination": "Curitiba",
					"departureAt": departure,
					"priceCents":  9900,
					"seatsTotal":  3,
				})
				requireStatus(t, status, body, http.StatusCreated)
				tripID = mustUnmarshal[struct {
					Trip struct {
						Id string `json:"id"`
					} `json:"trip"`
				}](t, body).Trip.Id
			}

			// Departure in the past is rejected.
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/companies/"+companyID+"/trips", owner, map[string]any{
					"origin":      origin,
					"destination": "Curitiba",
					"departureAt": srv.clock.Now().Add(-time.Hour),
					"priceCents":  9900,
					"seatsTotal":  3,
				})
				requireErrorCode(t, status, body, http.StatusBadRequest, "VALIDATION_ERROR")
			}

			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/trips?origin="+url.QueryEscape(origin), rider, nil)
				requireStatus(t, status, body, http.StatusOK)
				trips := mustUnmarshal[struct {
					Trips []struct {
						Id             string `json:"id"`
						SeatsAvailable int    `json:"seatsAvailable"`
					} `json:"trips"`
				}](t, body).Trips
				if len(trips) != 1 || trips[0].Id != tripID || trips[0].SeatsAvailable != 3 {
					t.Fatalf("unexpected search result: %+v", trips)
				}
			}

			// Four concurrent buyers for three open seats: exactly one sells out.
			codes := make(chan int, 4)
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					status, _, _ := srv.doJSON(t, http.MethodPost, "/trips/"+tripID+"/tickets", rider, nil)
					codes <- status
				}()
			}
			wg.Wait()
			close(codes)
			created, soldOut := 0, 0
			for c := range codes {
				switch c {
				case http.StatusCreated:
					created++
				case http.StatusUnprocessableEntity:
					soldOut++
				default:
					t.Fatalf("unexpected status %d", c)
				}
			}
			if created != 3 || soldOut != 1 {
				t.Fatalf("created=%d soldOut=%d", created, soldOut)
			}

			var ticketID string
			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/tickets/mine", rider, nil)
				requireStatus(t, status, body, http.StatusOK)
				mine := mustUnmarshal[struct {
					Tickets []struct {
						Id     string `json:"id"`
						Status string `json:"status"`
					} `json:"tickets"`
				}](t, body).Tickets
				if len(mine) != 3 {
					t.Fatalf("tickets: got %d want 3", len(mine))
				}
				ticketID = mine[0].Id
			}

			// Cancel frees the seat; a second cancel is rejected.
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/tickets/"+ticketID+"/cancel", rider, nil)
				requireStatus(t, status, body, http.StatusOK)
				status, body, _ = srv.doJSON(t, http.MethodPost, "/tickets/"+ticketID+"/cancel", rider, nil)
				requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "INVALID_TICKET_STATUS")
				status, body, _ = srv.doJSON(t, http.MethodPost, "/trips/"+tripID+"/tickets", rider, nil)
				requireStatus(t, status, body, http.StatusCreated)
			}

			// The trip cannot be deleted while it has tickets, nor shrunk below sold seats.
			{
				status, body, _ := srv.doJSON(t, http.MethodDelete, "/trips/"+tripID, owner, nil)
				requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "TRIP_HAS_TICKETS")
				status, body, _ = srv.doJSON(t, http.MethodPatch, "/trips/"+tripID, owner, map[string]any{"seatsTotal": 2})
				requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "SEATS_BELOW_SOLD")
				status, body, _ = srv.doJSON(t, http.MethodPatch, "/trips/"+tripID, owner, map[string]any{"seatsTotal": 5, "priceCents": 10900})
				requireStatus(t, status, body, http.StatusOK)
			}

			// After departure tickets can no longer be canceled.
			{
				srv.clock.Advance(73 * time.Hour)
				status, body, _ := srv.doJSON(t, http.MethodGet, "/tickets/mine", rider, nil)
				requireStatus(t, status, body, http.StatusOK)
				mine := mustUnmarshal[struct {
					Tickets []struct {
						Id     string `json:"id"`
						Status string `json:"status"`
					} `json:"tickets"`
				}](t, body).Tickets
				for _, tk := range mine {
					if tk.Status == "CANCELED" {
						continue
					}
					status, body, _ = srv.doJSON(t, http.MethodPost, "/tickets/"+tk.Id+"/cancel", rider, nil)
					requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "TRIP_DEPARTED")
					break
				}
			}

			// Users that own companies or hold tickets cannot be deleted.
			{
				status, body, _ := srv.doJSON(t, http.MethodDelete, "/users/"+ownerID, ownerAsPassenger, nil)
				requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "USER_OWNS_COMPANIES")
				status, body, _ = srv.doJSON(t, http.MethodDelete, "/users/"+riderID, rider, nil)
				requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "USER_HAS_TICKETS")
			}
		})
	}
}

func TestAuditLog_ITest(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)
			userID := register(t, srv, "audited")

			status, body, _ := srv.doJSON(t, http.MethodGet, "/audit-logs", actor{subject: userID, role: "PASSENGER"}, nil)
			requireErrorCode(t, status, body, http.StatusForbidden, "FORBIDDEN")

			status, body, _ = srv.doJSON(t, http.MethodGet, "/audit-logs?limit=50", actor{subject: "admin", role: "ADMIN"}, nil)
			requireStatus(t, status, body, http.StatusOK)
			entries := mustUnmarshal[struct {
				Entries []struct {
					EntityName string `json:"entityName"`
					EntityId   string `json:"entityId"`
					Action     string `json:"action"`
					Username   string `json:"username"`
				} `json:"entries"`
			}](t, body).Entries
			for _, e := range entries {
				if e.EntityName == "User" && e.EntityId == userID && e.Action == "CREATE" {
					if e.Username != "system" {
						t.Fatalf("registration audited as %q, want system", e.Username)
					}
					return
				}
			}
			t.Fatalf("registration not found in audit log: %+v", entries)
		})
	}
}
