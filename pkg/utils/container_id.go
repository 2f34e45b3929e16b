package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateContainerID creates a human-readable container ID:
// {operation}-{shipSymbolWithoutAgentPrefix}-{8charHexUUID}
//
//	GenerateContainerID("scout-tour", "AGENT-SCOUT-1") -> "scout-tour-SCOUT-1-a3f8e2b1"
func GenerateContainerID(operation, shipSymbol string) string {
	return operation + "-" + stripAgentPrefix(shipSymbol) + "-" + generateShortUUID()
}

// stripAgentPrefix keeps the last two hyphen-separated segments, which are
// the ship type and number. The agent prefix itself may contain hyphens.
//
//	"MY-AGENT-MINER-2" -> "MINER-2"
//	"SCOUT-1" -> "SCOUT-1"
func stripAgentPrefix(shipSymbol string) string {
	parts := strings.Split(shipSymbol, "-")
	if len(parts) <= 2 {
		return shipSymbol
	}
	return strings.Join(parts[len(parts)-2:], "-")
}

func generateShortUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
