package database

import (
	"fmt"

	"chat-service/config"
	"chat-service/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewPostgres(log *zap.Logger) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.Config("POSTGRES_HOST"),
		config.Config("POSTGRES_PORT"),
		config.Config("POSTGRES_USER"),
		config.Config("POSTGRES_PASSWORD"),
		config.Config("POSTGRES_DB"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		panic("failed to connect postgres")
	}

	log.Info("connection opened to Postgres")
	db.AutoMigrate(
		&model.User{},
		&model.Device{},
		&model.Contact{},
		&model.Chat{},
		&model.ChatUser{},
		&model.Message{},
		&model.MessageDelete{},
		&model.MessageStatus{},
		&model.ChatNotification{},
		&model.Reaction{},
		&model.StarredMessage{},
	)
	log.Info("Postgres database migrated")

	return db
}
