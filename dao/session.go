package dao

import (
	"filecoder-backend/model"

	"gorm.io/gorm"
)

// SaveTurn 在同一事务中写入会话记录和本轮消息
func SaveTurn(session *model.Session, messages []model.Message) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(model.Session{SessionID: session.SessionID}).
			FirstOrCreate(session).Error; err != nil {
			return err
		}

		if len(messages) == 0 {
			return nil
		}

		return tx.Create(&messages).Error
	})
}

func GetSessions() ([]model.Session, error) {
	var sessions []model.Session
	if err := DB.Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func DeleteSession(sessionID string) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		// 删除会话
		if err := tx.Where("session_id = ?", sessionID).
			Delete(&model.Session{}).Error; err != nil {
			return err
		}

		// 删除会话内的对话记录
		return tx.Where("session_id = ?", sessionID).
			Delete(&model.Message{}).Error
	})
}

func GetMessagesBySessionID(sessionID string) ([]model.Message, error) {
	var messages []model.Message
	if err := DB.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
