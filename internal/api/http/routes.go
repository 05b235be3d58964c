package http

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes for the scheduling service
func SetupRoutes(router *gin.Engine, handlers *Handlers) {
	v1 := router.Group("/api/v1")
	{
		schedule := v1.Group("/schedule")
		{
			schedule.GET("/view", handlers.GetSchedulerView)
			schedule.POST("/validate", handlers.ValidateJob)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", handlers.ScheduleJob)
			jobs.GET("/:jobId", handlers.GetJob)
			jobs.DELETE("/:jobId", handlers.DeleteJob)
			jobs.GET("/:jobId/executions", handlers.GetJobExecutions)
			jobs.POST("/:jobId/estimate", handlers.EstimateJob)
			jobs.GET("/:jobId/compatibility", handlers.JobCompatibility)
			jobs.POST("/:jobId/stages/:stageId/punch-in", handlers.PunchIn)
			jobs.POST("/:jobId/stages/:stageId/punch-out", handlers.PunchOut)
		}

		machines := v1.Group("/machines")
		{
			machines.GET("", handlers.ListMachines)
			machines.GET("/:machineId/row", handlers.GetMachineRow)
			machines.GET("/:machineId/changeover", handlers.GetChangeover)
		}
	}
}
