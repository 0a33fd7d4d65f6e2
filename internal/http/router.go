// README: HTTP route registration: public booking, driver dashboard and admin groups.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ridebook/internal/http/handlers"
	"ridebook/internal/http/middleware"
)

func (s *Server) Routes() http.Handler {
	d := s.deps
	r := gin.New()
	r.Use(middleware.Recovery(d.Logger), middleware.NewRelic(d.NewRelic), middleware.Logging(d.Logger))
	// Preflight requests never match a route, so CORS sits on the engine.
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	public := handlers.NewPublicHandler(d.Rides, d.Pricing)
	pub := r.Group("/api", d.RateLimiter.Handler())
	pub.POST("/rides", public.CreateRide)
	pub.POST("/rides/:id/cancel", public.CancelRide)
	pub.POST("/quotes", public.Quote)

	drv := handlers.NewDriverHandler(d.Rides, d.Records)
	dg := r.Group("/api/driver", middleware.Auth(d.Verifier), middleware.RequireRole(middleware.RoleDriver))
	dg.GET("/rides/available", drv.ListAvailable)
	dg.GET("/rides", drv.ListMine)
	dg.GET("/rides/:id/eligibility", drv.Eligibility)
	dg.POST("/rides/:id/accept", drv.Accept)
	dg.POST("/rides/:id/give-up", drv.GiveUp)
	dg.POST("/rides/:id/confirm", drv.Confirm)
	dg.POST("/rides/:id/complete", drv.Complete)
	dg.POST("/rides/:id/reschedule", drv.Reschedule)
	dg.GET("/notifications", drv.Notifications)

	adm := handlers.NewAdminHandler(handlers.AdminDeps{
		Rides:   d.Rides,
		Drivers: d.Drivers,
		Pricing: d.Pricing,
		Archive: d.Archive,
		Records: d.Records,
	})
	ag := r.Group("/api/admin", middleware.Auth(d.Verifier), middleware.RequireRole(middleware.RoleAdmin))
	ag.GET("/rides", adm.ListRides)
	ag.GET("/rides/:id", adm.GetRide)
	ag.GET("/rides/:id/eligibility", adm.Eligibility)
	ag.POST("/rides/:id/assign", adm.Assign)
	ag.POST("/rides/:id/give-up", adm.GiveUp)
	ag.POST("/rides/:id/confirm", adm.Confirm)
	ag.POST("/rides/:id/complete", adm.Complete)
	ag.POST("/rides/:id/reschedule", adm.Reschedule)
	ag.POST("/rides/:id/cancel", adm.Cancel)
	ag.DELETE("/rides/:id", adm.Delete)
	ag.GET("/drivers", adm.ListDrivers)
	ag.POST("/drivers", adm.RegisterDriver)
	ag.PUT("/drivers/:id/service-fee", adm.SetServiceFee)
	ag.GET("/day-offs", adm.ListDayOffs)
	ag.POST("/day-offs", adm.AddDayOff)
	ag.DELETE("/day-offs/:id", adm.DeleteDayOff)
	ag.PUT("/rates", adm.SaveRate)
	ag.GET("/archive", adm.ArchiveMonths)
	ag.POST("/archive/run", adm.RunArchive)
	ag.GET("/archive/:month", adm.ArchiveSummary)
	ag.GET("/notifications", adm.Notifications)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
