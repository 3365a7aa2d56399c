// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/params"
	"github.com/ecoplant/ecostat/pkg/syrus4"
)

type decodeRequest struct {
	Generation string `json:"generation" binding:"required"`
	Frame      string `json:"frame"`
	MvZero     *int   `json:"mv_zero"`
}

type commandRequest struct {
	Generation string  `json:"generation" binding:"required"`
	Operation  string  `json:"operation" binding:"required"`
	Magnitude  float64 `json:"magnitude"`
	Unit       string  `json:"unit"`
	MvZero     *int    `json:"mv_zero"`
	Template   string  `json:"template"`
}

type scheduleRequest struct {
	Generation string `json:"generation" binding:"required"`
	Start      string `json:"start" binding:"required"`
	End        string `json:"end" binding:"required"`
}

type bulkRequest struct {
	Text   string `json:"text"`
	MvZero *int   `json:"mv_zero"`
}

type versionRequest struct {
	Instances []syrus4.Instance `json:"instances"`
}

type reconcileRequest struct {
	Generation string                        `json:"generation" binding:"required"`
	Live       map[ecoplant.SocketKey]string `json:"live"`
	Bulk       *syrus4.BulkParams            `json:"bulk"`
	State      string                        `json:"state"`
}

type sendRequest struct {
	Commands []string `json:"commands" binding:"required,min=1"`
}

func (s *Server) handleDecode(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gen, err := params.ParseGeneration(req.Generation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, ok := params.Decode(gen, req.Frame, req.MvZero)
	if ok && s.opts.Metrics != nil {
		s.opts.Metrics.ObserveResult(result)
	}
	if !ok {
		if ev, isEvent := ecoplant.ParseEvent(req.Frame, req.MvZero); isEvent {
			c.JSON(http.StatusOK, gin.H{"matched": false, "event": ev})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"matched": ok, "result": result})
}

func (s *Server) handleBuildCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gen, err := params.ParseGeneration(req.Generation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code, err := ecoplant.ParseOperation(req.Operation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd, err := params.BuildCommand(gen, code, req.Magnitude, req.Unit, req.MvZero, req.Template)
	if err != nil {
		c.JSON(buildErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if params.IsOutOfRange(cmd) {
		cfg, _ := code.Config()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "value out of range", "max": cfg.MaxValue})
		return
	}
	c.JSON(http.StatusOK, gin.H{"command": cmd})
}

func (s *Server) handleSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gen, err := params.ParseGeneration(req.Generation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmds, err := params.BuildWindowCommand(gen, req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": cmds})
}

func (s *Server) handleBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, syrus4.DecodeBulkParams(req.Text, req.MvZero))
}

func (s *Server) handleVersion(c *gin.Context) {
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": syrus4.DecodeVersionInfo(req.Instances)})
}

func (s *Server) handleReconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gen, err := params.ParseGeneration(req.Generation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var state params.QueryState
	switch req.State {
	case "", "pending":
		state = params.QueryPending
	case "done":
		state = params.QueryDone
	case "failed":
		state = params.QueryFailed
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be pending, done or failed"})
		return
	}

	c.JSON(http.StatusOK, params.Reconcile(req.Live, req.Bulk, gen, state))
}

func (s *Server) handleQueries(c *gin.Context) {
	gen, err := params.ParseGeneration(c.Param("generation"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmds, err := params.QueryCommands(gen)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": cmds})
}

func (s *Server) handleSend(c *gin.Context) {
	if s.opts.Executor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command execution is not configured"})
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	started := time.Now()
	responses, err := gateway.Send(ctx, s.opts.Executor, c.Param("id"), req.Commands...)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveCommand("api", started, err)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "responses": responses})
		return
	}
	c.JSON(http.StatusOK, gin.H{"responses": responses})
}

func buildErrorStatus(err error) int {
	if errors.Is(err, ecoplant.ErrMissingTemplate) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
