package wire

import (
	"Tutorlink/internal/api"
	"Tutorlink/internal/api/config"
	"Tutorlink/internal/api/handler"
	"Tutorlink/internal/job"
	"Tutorlink/internal/pkg/cron"
	"Tutorlink/internal/pkg/kafka"
	"Tutorlink/internal/pkg/profile"
	"Tutorlink/internal/repository"
	"Tutorlink/internal/service"
	"Tutorlink/internal/ws"

	"github.com/gin-gonic/gin"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	pkgmongo "Tutorlink/internal/pkg/mongo"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	KafkaManager *kafka.ConsumerManager
	CronManager  *cron.Manager
	ChatService  service.ChatService
}

func BuildApplication(db *gorm.DB, mongoDB *mongodrv.Database, cfg *config.Config) (*ApplicationContainer, error) {
	convRepo := repository.NewConversationRepo(db)
	userRepo := repository.NewUserRepo(db)
	messageRepo := pkgmongo.NewMessageRepo(mongoDB)

	marketClient := profile.NewClient(cfg.Market)
	userService := service.NewUserService(userRepo, marketClient)
	chatService := service.NewChatService(convRepo, messageRepo, userService)

	hub := ws.NewHub(chatService)

	handlers := &api.HandlersGroup{
		ChatHandler: handler.NewChatHandler(chatService),
		WSHandler:   handler.NewWsHandler(hub),
	}

	router := api.SetupRouter(handlers)

	kafkaMgr, err := kafka.NewConsumerManager(cfg, userRepo)
	if err != nil {
		return nil, err
	}

	cronMgr := cron.NewCronManager(job.NewChatMetricJob(messageRepo))

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		KafkaManager: kafkaMgr,
		CronManager:  cronMgr,
		ChatService:  chatService,
	}, nil
}
