package persistence

import (
	"time"
)

// PlayerModel represents the players table
// NOTE: credits are never persisted, they are always fetched fresh from the API
type PlayerModel struct {
	ID          int        `gorm:"column:id;primaryKey;autoIncrement"`
	AgentSymbol string     `gorm:"column:agent_symbol;unique;not null"`
	Token       string     `gorm:"column:token;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	LastActive  *time.Time `gorm:"column:last_active"`
	Metadata    string     `gorm:"column:metadata;type:jsonb"` // JSON stored as string
}

func (PlayerModel) TableName() string {
	return "players"
}

// ContainerModel represents the containers table
type ContainerModel struct {
	ID            string       `gorm:"column:id;primaryKey;not null"`
	PlayerID      int          `gorm:"column:player_id;primaryKey;not null;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Player        *PlayerModel `gorm:"foreignKey:PlayerID;references:ID"`
	ContainerType string       `gorm:"column:container_type"`
	CommandType   string       `gorm:"column:command_type"`
	Status        string       `gorm:"column:status"`
	RestartPolicy string       `gorm:"column:restart_policy"`
	RestartCount  int          `gorm:"column:restart_count;default:0"`
	MaxIterations int          `gorm:"column:max_iterations;default:1"`
	Config        string       `gorm:"column:config;type:text"` // JSON as text
	CreatedAt     time.Time    `gorm:"column:created_at;not null"`
	StartedAt     *time.Time   `gorm:"column:started_at"`
	StoppedAt     *time.Time   `gorm:"column:stopped_at"`
	ExitCode      *int         `gorm:"column:exit_code"`
	ExitReason    string       `gorm:"column:exit_reason"`
}

func (ContainerModel) TableName() string {
	return "containers"
}

// ContainerLogModel represents the container_logs table
type ContainerLogModel struct {
	ID          int             `gorm:"column:id;primaryKey;autoIncrement"`
	ContainerID string          `gorm:"column:container_id;not null;index"`
	PlayerID    int             `gorm:"column:player_id;not null"`
	Container   *ContainerModel `gorm:"foreignKey:ContainerID,PlayerID;references:ID,PlayerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Timestamp   time.Time       `gorm:"column:timestamp;not null"`
	Level       string          `gorm:"column:level;not null;default:'INFO'"`
	Message     string          `gorm:"column:message;type:text;not null"`
}

func (ContainerLogModel) TableName() string {
	return "container_logs"
}

// ShipAssignmentModel represents the ship_assignments table.
// One row per (ship, player); reassignment rewrites the row in place.
type ShipAssignmentModel struct {
	ShipSymbol    string       `gorm:"column:ship_symbol;primaryKey;not null"`
	PlayerID      int          `gorm:"column:player_id;primaryKey;not null"`
	Player        *PlayerModel `gorm:"foreignKey:PlayerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ContainerID   string       `gorm:"column:container_id"`
	Operation     string       `gorm:"column:operation"`
	Status        string       `gorm:"column:status;default:'idle'"`
	AssignedAt    *time.Time   `gorm:"column:assigned_at"`
	ReleasedAt    *time.Time   `gorm:"column:released_at"`
	ReleaseReason string       `gorm:"column:release_reason"`
}

func (ShipAssignmentModel) TableName() string {
	return "ship_assignments"
}

// SystemGraphModel represents the system_graphs table
type SystemGraphModel struct {
	SystemSymbol string    `gorm:"column:system_symbol;primaryKey"`
	GraphData    string    `gorm:"column:graph_data;type:jsonb;not null"` // JSONB on PostgreSQL, TEXT on SQLite
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (SystemGraphModel) TableName() string {
	return "system_graphs"
}

// MarketGoodModel represents the market_data table, one row per
// (waypoint, good, player) combination
type MarketGoodModel struct {
	WaypointSymbol string       `gorm:"column:waypoint_symbol;primaryKey;size:255;not null"`
	GoodSymbol     string       `gorm:"column:good_symbol;primaryKey;size:100;not null"`
	PlayerID       int          `gorm:"column:player_id;primaryKey;not null"`
	Player         *PlayerModel `gorm:"foreignKey:PlayerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	SystemSymbol   string       `gorm:"column:system_symbol;index;not null"`
	Supply         string       `gorm:"column:supply;size:50"`
	Activity       string       `gorm:"column:activity;size:50"`
	PurchasePrice  int          `gorm:"column:purchase_price;not null"`
	SellPrice      int          `gorm:"column:sell_price;not null"`
	TradeVolume    int          `gorm:"column:trade_volume;not null"`
	LastUpdated    time.Time    `gorm:"column:last_updated;index;not null"`
}

func (MarketGoodModel) TableName() string {
	return "market_data"
}

// AllModels returns every model the daemon migrates at startup
func AllModels() []interface{} {
	return []interface{}{
		&PlayerModel{},
		&ContainerModel{},
		&ContainerLogModel{},
		&ShipAssignmentModel{},
		&SystemGraphModel{},
		&MarketGoodModel{},
	}
}
