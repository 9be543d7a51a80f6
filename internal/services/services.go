package services

import (
	"log"
	"log/slog"

	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/config"
	"github.com/curaious/teamboard/internal/db"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/curaious/teamboard/internal/pubsub"
	"github.com/curaious/teamboard/internal/services/activity"
	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/curaious/teamboard/internal/services/project"
	"github.com/curaious/teamboard/internal/services/task"
	"github.com/curaious/teamboard/internal/services/user"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

type Services struct {
	DB     *sqlx.DB
	Redis  *redis.Client
	Cache  *cache.Manager
	PubSub *pubsub.PubSub
	Events *notify.RedisNotifier

	Resolver   *access.Resolver
	User       *user.UserService
	Project    *project.ProjectService
	Membership *membership.MembershipService
	Task       *task.TaskService
	Activity   *activity.ActivityService
}

func NewServices(conf *config.Config) *Services {
	dbconn := db.NewConn(conf)

	svc := &Services{DB: dbconn}

	redisClient, err := db.NewRedisClient(conf)
	switch {
	case err == nil:
		svc.Redis = redisClient
		svc.Events = notify.NewRedisNotifier(redisClient, notify.DefaultChannel)
	case conf.CACHE_DRIVER == CacheDriverRedis:
		log.Fatal("Redis is required by the redis cache driver: ", err)
	default:
		slog.Warn("Redis unavailable, realtime events are disabled", slog.Any("error", err))
	}

	svc.Cache = newCacheManager(conf, svc)

	svc.Activity = activity.NewActivityService(activity.NewActivityRepo(dbconn))

	notifier := notify.Fanout{svc.Activity}
	if svc.Events != nil {
		notifier = append(notifier, svc.Events)
	}

	svc.Resolver = access.NewResolver(access.NewStoreLookup(dbconn), access.DefaultRoutes())
	svc.User = user.NewUserService(user.NewUserRepo(dbconn), svc.Cache, conf.CACHE_SEARCH_TTL)
	svc.Project = project.NewProjectService(project.NewProjectRepo(dbconn), svc.Cache, notifier)
	svc.Membership = membership.NewMembershipService(membership.NewMembershipRepo(dbconn), svc.Cache, notifier)
	svc.Task = task.NewTaskService(task.NewTaskRepo(dbconn), svc.Cache, notifier)

	return svc
}

// newCacheManager builds the cache on the configured driver. The memory driver keeps one cache
// per process, so invalidations are shared with peers over postgres NOTIFY.
func newCacheManager(conf *config.Config, svc *Services) *cache.Manager {
	opts := cache.Options{InvalidateTimeout: conf.CACHE_INVALIDATE_TIMEOUT}

	switch conf.CACHE_DRIVER {
	case CacheDriverRedis:
		slog.Info("Using redis cache")
		return cache.NewManager(cache.NewRedisStore(svc.Redis, ""), opts)

	case CacheDriverMemory:
		store, err := cache.NewMemoryStore(conf.CACHE_MAX_ENTRIES)
		if err != nil {
			log.Fatal("Unable to create memory cache: ", err)
		}

		manager := cache.NewManager(store, opts)

		ps := pubsub.NewPubSub(conf, svc.DB)
		ps.Subscribe(manager.DropLocal)
		if err := ps.Start(); err != nil {
			log.Fatal("Unable to start cache invalidation listener: ", err)
		}
		manager.SetBroadcaster(ps)
		svc.PubSub = ps

		slog.Info("Using in-memory cache", slog.Int("max_entries", conf.CACHE_MAX_ENTRIES))
		return manager

	default:
		log.Fatalf("Unknown cache driver %q", conf.CACHE_DRIVER)
		return nil
	}
}

// Close releases the connections held by the services
func (s *Services) Close() {
	if s.PubSub != nil {
		s.PubSub.Stop()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			slog.Warn("Failed to close redis", slog.Any("error", err))
		}
	}
	if err := s.DB.Close(); err != nil {
		slog.Warn("Failed to close database", slog.Any("error", err))
	}
}
