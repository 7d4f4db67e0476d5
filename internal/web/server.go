package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/example/restrobook/internal/allocation"
	"github.com/example/restrobook/internal/booking"
)

const maxBodyBytes = 1 << 20

// Catalog is the read side the handlers browse.
type Catalog interface {
	GetRestaurant(ctx context.Context, id int64) (booking.Restaurant, error)
	GetSlot(ctx context.Context, id, restaurantID int64) (booking.Slot, error)
	ListSlotsByRestaurant(ctx context.Context, restaurantID int64) ([]booking.Slot, error)
}

// Booker is implemented by *booking.Coordinator.
type Booker interface {
	Book(ctx context.Context, req booking.BookRequest) (booking.Booking, error)
	Quote(ctx context.Context, slotID, restaurantID int64, partySize int) (allocation.Allocation, error)
}

type Server struct {
	Catalog Catalog
	Booker  Booker
	Logger  hclog.Logger
	// Limits is applied to the booking route only. Nil disables limiting.
	Limits *ClientLimiter
}

func (s *Server) Routes() http.Handler {
	if s.Logger == nil {
		s.Logger = hclog.NewNullLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Route("/restaurants/{restaurantID}/slots", func(r chi.Router) {
		r.Get("/", s.handleListSlots)
		r.Get("/{slotID}", s.handleGetSlot)
		r.Post("/{slotID}/quote", s.handleQuote)
		r.With(RateLimit(s.Limits, s.Logger)).Post("/{slotID}/bookings", s.handleBook)
	})

	return r
}

func requestLogger(logger hclog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

// Start serves h on addr until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, logger hclog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
