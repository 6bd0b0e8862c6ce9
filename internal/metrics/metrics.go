package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "numquiz"

// Command outcomes used as the outcome label.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// Collectors groups the Prometheus instruments used by the game server.
type Collectors struct {
	ActiveRooms      prometheus.Gauge
	RoomsCreated     prometheus.Counter
	GamesFinished    prometheus.Counter
	PlayersJoined    prometheus.Counter
	AnswersSubmitted prometheus.Counter
	Connections      prometheus.Gauge
	Commands         *prometheus.CounterVec
	ArchiveWrites    *prometheus.CounterVec
	ArchiveDropped   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms currently held in the registry.",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created by hosts.",
		}),
		GamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games advanced past their last question.",
		}),
		PlayersJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_joined_total",
			Help:      "Successful player joins.",
		}),
		AnswersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Accepted answer submissions.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound websocket commands by type and outcome.",
		}, []string{"type", "outcome"}),
		ArchiveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_writes_total",
			Help:      "Finished game archive writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		ArchiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_dropped_total",
			Help:      "Finished games dropped because the archive queue was full.",
		}),
	}

	reg.MustRegister(
		c.ActiveRooms,
		c.RoomsCreated,
		c.GamesFinished,
		c.PlayersJoined,
		c.AnswersSubmitted,
		c.Connections,
		c.Commands,
		c.ArchiveWrites,
		c.ArchiveDropped,
	)
	return c
}

// Discard returns collectors registered on a throwaway registry.
func Discard() *Collectors {
	return New(prometheus.NewRegistry())
}
