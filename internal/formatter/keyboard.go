package formatter

import (
	"encoding/json"

	"github.com/go-telegram/bot/models"

	appmodels "github.com/mixelka/mailgroups/pkg/models"
)

// maxCallbackData is the Telegram limit for callback_data, in bytes
const maxCallbackData = 64

// BuildGroupsKeyboard creates an inline keyboard with one row of actions per
// tag. Tags too long to fit in callback data get no row.
func BuildGroupsKeyboard(tags []string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, tag := range tags {
		var row []models.InlineKeyboardButton
		for _, btn := range []struct {
			text   string
			action appmodels.CallbackAction
		}{
			{tag, appmodels.CallbackSummary},
			{"People", appmodels.CallbackPeople},
			{"Unfollow", appmodels.CallbackUnfollow},
			{"Forget", appmodels.CallbackPurge},
		} {
			data := EncodeCallback(appmodels.CallbackData{Action: btn.action, Tag: tag})
			if len(data) > maxCallbackData {
				row = nil
				break
			}
			row = append(row, models.InlineKeyboardButton{Text: btn.text, CallbackData: data})
		}
		if row != nil {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// EncodeCallback encodes callback data to string
func EncodeCallback(data appmodels.CallbackData) string {
	b, _ := json.Marshal(data)
	return string(b)
}

// DecodeCallback decodes callback data from string
func DecodeCallback(data string) (appmodels.CallbackData, error) {
	var cb appmodels.CallbackData
	err := json.Unmarshal([]byte(data), &cb)
	return cb, err
}
