package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/docrefine/internal/errors"
	"github.com/gmsas95/docrefine/internal/security"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(newHealth(s.version))
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.metrics.Snapshot())
}

func (s *Server) handleProbe(c *fiber.Ctx) error {
	resp := ProbeResponse{Model: s.prober.Model()}

	models, err := s.prober.Probe(c.UserContext())
	if err != nil {
		resp.Error = err.Error()
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}

	resp.Reachable = true
	resp.Models = models
	for _, m := range models {
		if m == resp.Model {
			resp.ModelFound = true
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleProcess(c *fiber.Ctx) error {
	var req ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.WrapAs(apperrors.ErrBadRequest, err)
	}
	if req.Path == "" {
		return apperrors.WrapAs(apperrors.ErrBadRequest, fmt.Errorf("path is required"))
	}

	source, err := security.ResolveFile(req.Path, s.config.Server.InputDir)
	if err != nil {
		s.recordRejection(err)
		return err
	}

	var output string
	if req.Output != "" {
		target, err := security.ResolveInDir(req.Output, s.config.Output.Dir)
		if err != nil {
			s.recordRejection(err)
			return err
		}
		output = target.Path()
	}

	s.logger.Info("Processing request",
		zap.String("path", source.Path()),
		zap.Strings("tasks", req.Tasks),
	)

	run, record, err := s.processor.ProcessDocument(c.UserContext(), source.Path(), req.Tasks, output)
	if err != nil {
		return err
	}

	return c.JSON(ProcessResponse{
		RunID:      run.ID,
		OutputPath: run.OutputPath,
		SoftErrors: run.SoftErrors,
		DurationMs: run.DurationMs,
		Record:     record,
	})
}

func (s *Server) handleListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 0 {
		return apperrors.WrapAs(apperrors.ErrBadRequest, fmt.Errorf("limit must not be negative"))
	}

	runs, err := s.history.ListRuns(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

func (s *Server) handleGetRun(c *fiber.Ctx) error {
	run, err := s.history.GetRun(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(run)
}

func (s *Server) recordRejection(err error) {
	if s.metrics != nil && apperrors.GetCode(err) == apperrors.ErrPathRejected.Code {
		s.metrics.RecordPathRejection()
	}
}
