package controlsocket

import (
	"context"
	"fmt"

	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/internal/domain/shared"
)

// daemonVersion is reported by daemon.health; bump alongside releases.
const daemonVersion = "0.1.0"

func (s *Server) handleHealth(req Request) *Response {
	return resultResponse(req.ID, HealthResult{
		Status:           "ok",
		Version:          daemonVersion,
		ActiveContainers: len(s.supervisor.List()),
	})
}

func (s *Server) handleCreate(ctx context.Context, req Request) *Response {
	p, err := decodeParams[CreateParams](req)
	if err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}
	if err := s.validateParams(p); err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}

	if symbol, ok := shipSymbolFromConfig(p.Config); ok {
		playerID, err := shared.NewPlayerID(p.PlayerID)
		if err != nil {
			return errorResponse(req.ID, errCodeInvalidParams, err.Error())
		}
		if _, err := s.shipRepo.FindBySymbol(ctx, symbol, playerID); err != nil {
			return errorResponse(req.ID, errCodeApplication, fmt.Sprintf("ship %s not found: %v", symbol, err))
		}
	}

	work, containerType, err := s.workFactory.Build(p.ContainerType, p.PlayerID, p.Config)
	if err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}

	restartPolicy := container.RestartPolicy(p.RestartPolicy)
	if restartPolicy == "" {
		restartPolicy = container.RestartPolicyNo
	}

	entity, err := s.supervisor.Create(ctx, p.ContainerID, containerType, p.ContainerType, p.PlayerID, restartPolicy, p.Config, work)
	if err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}

	return resultResponse(req.ID, CreateResult{ContainerID: entity.ID(), Status: string(entity.Status())})
}

func (s *Server) handleStop(ctx context.Context, req Request) *Response {
	p, err := decodeParams[StopParams](req)
	if err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}
	if err := s.validateParams(p); err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}

	if err := s.supervisor.Stop(ctx, p.ContainerID, p.PlayerID); err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}

	return resultResponse(req.ID, StopResult{ContainerID: p.ContainerID, Status: "stopped"})
}

func (s *Server) handleInspect(ctx context.Context, req Request) *Response {
	p, err := decodeParams[InspectParams](req)
	if err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}
	if err := s.validateParams(p); err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}

	model, err := s.containerRepo.Get(ctx, p.ContainerID, p.PlayerID)
	if err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}
	if model == nil {
		return errorResponse(req.ID, errCodeApplication, fmt.Sprintf("container %s not found", p.ContainerID))
	}

	limit := p.LogLimit
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.logRepo.GetLogs(ctx, p.ContainerID, p.PlayerID, limit, nil, nil)
	if err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}

	return resultResponse(req.ID, InspectResult{
		ContainerDescriptor: descriptorFromModel(model),
		Logs:                logLinesFromEntries(entries),
	})
}

func (s *Server) handleList(ctx context.Context, req Request) *Response {
	p, err := decodeParams[ListParams](req)
	if err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}

	models, err := s.containerRepo.ListAll(ctx, p.PlayerID)
	if err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}

	descriptors := make([]ContainerDescriptor, 0, len(models))
	for _, m := range models {
		descriptors = append(descriptors, descriptorFromModel(m))
	}

	return resultResponse(req.ID, ListResult{Containers: descriptors})
}

func (s *Server) handleRemove(ctx context.Context, req Request) *Response {
	p, err := decodeParams[RemoveParams](req)
	if err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}
	if err := s.validateParams(p); err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}

	model, err := s.containerRepo.Get(ctx, p.ContainerID, p.PlayerID)
	if err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}
	if model == nil {
		return errorResponse(req.ID, errCodeApplication, fmt.Sprintf("container %s not found", p.ContainerID))
	}
	if isNonTerminal(model.Status) {
		return errorResponse(req.ID, errCodeApplication, fmt.Sprintf("container %s is %s, stop it before removing", p.ContainerID, model.Status))
	}

	if err := s.containerRepo.Remove(ctx, p.ContainerID, p.PlayerID); err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}

	return resultResponse(req.ID, RemoveResult{ContainerID: p.ContainerID})
}

func (s *Server) handleLogs(ctx context.Context, req Request) *Response {
	p, err := decodeParams[LogsParams](req)
	if err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}
	if err := s.validateParams(p); err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}

	since, err := parseSince(p.Since)
	if err != nil {
		return errorResponse(req.ID, errCodeInvalidParams, err.Error())
	}

	entries, err := s.logRepo.GetLogs(ctx, p.ContainerID, p.PlayerID, limit, p.Level, since)
	if err != nil {
		return errorResponse(req.ID, errCodeApplication, err.Error())
	}

	return resultResponse(req.ID, LogsResult{Logs: logLinesFromEntries(entries)})
}

func shipSymbolFromConfig(config map[string]interface{}) (string, bool) {
	if config == nil {
		return "", false
	}
	v, ok := config["ship_symbol"]
	if !ok {
		return "", false
	}
	symbol, ok := v.(string)
	return symbol, ok && symbol != ""
}

func isNonTerminal(status string) bool {
	switch container.ContainerStatus(status) {
	case container.ContainerStatusStopped, container.ContainerStatusFailed:
		return false
	default:
		return true
	}
}
