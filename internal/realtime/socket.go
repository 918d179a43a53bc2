package realtime

import (
	"context"
	"errors"

	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/models"
	ws "github.com/alatoul/ride-hailing/pkg/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handleSendMessage handles send_message frames:
// {"receiver_id": "...", "ride_id": "...", "content": "..."}
func (s *Service) handleSendMessage(client *ws.Client, msg *ws.Message) {
	senderID, err := uuid.Parse(client.ID)
	if err != nil {
		client.SendMessage(ws.NewErrorMessage("Unauthorized"))
		return
	}

	receiverID, err := uuid.Parse(stringField(msg.Data, "receiver_id"))
	if err != nil {
		client.SendMessage(ws.NewErrorMessage("invalid receiver_id"))
		return
	}
	rideID, err := uuid.Parse(firstNonEmpty(stringField(msg.Data, "ride_id"), msg.RideID))
	if err != nil {
		client.SendMessage(ws.NewErrorMessage("invalid ride_id"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), socketOpTimeout)
	defer cancel()

	_, err = s.sendMessage(ctx, "ws", senderID, &models.SendMessageRequest{
		ReceiverID: receiverID,
		RideID:     &rideID,
		Content:    stringField(msg.Data, "content"),
	})
	if err != nil {
		client.SendMessage(ws.NewErrorMessage(clientError(err, "Failed to send message")))
	}
}

// handleJoinRideRoom puts a ride party into the ride's room so it receives
// ride_update and typing frames.
func (s *Service) handleJoinRideRoom(client *ws.Client, msg *ws.Message) {
	rideID, err := uuid.Parse(firstNonEmpty(stringField(msg.Data, "ride_id"), msg.RideID))
	if err != nil {
		client.SendMessage(ws.NewErrorMessage("invalid ride_id"))
		return
	}
	userID, err := uuid.Parse(client.ID)
	if err != nil {
		client.SendMessage(ws.NewErrorMessage("Unauthorized"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), socketOpTimeout)
	defer cancel()

	parties, err := s.repo.GetRideParties(ctx, rideID)
	if err != nil && !errors.Is(err, ErrRideNotFound) {
		s.log.Warn("failed to load ride for room join", zap.String("ride_id", rideID.String()), zap.Error(err))
		client.SendMessage(ws.NewErrorMessage("Failed to join ride room"))
		return
	}
	if parties == nil || !parties.IsParty(userID) {
		client.SendMessage(ws.NewErrorMessage("Not authorized for this ride"))
		return
	}

	s.hub.AddClientToRide(client, rideID.String())

	joined := ws.NewMessage(ws.TypeJoinedRideRoom, map[string]interface{}{
		"ride_id": rideID.String(),
		"status":  string(parties.Status),
	})
	joined.RideID = rideID.String()
	client.SendMessage(joined)
}

func (s *Service) handleLeaveRideRoom(client *ws.Client, msg *ws.Message) {
	rideID := firstNonEmpty(stringField(msg.Data, "ride_id"), msg.RideID, client.GetRide())
	if rideID == "" {
		return
	}

	s.hub.RemoveClientFromRide(client, rideID)

	left := ws.NewMessage(ws.TypeLeftRideRoom, map[string]interface{}{"ride_id": rideID})
	left.RideID = rideID
	client.SendMessage(left)
}

// handleTyping relays a typing indicator to the other clients in the room
func (s *Service) handleTyping(client *ws.Client, msg *ws.Message) {
	rideID := client.GetRide()
	if rideID == "" {
		return
	}

	isTyping, ok := msg.Data["is_typing"].(bool)
	if !ok {
		return
	}

	for _, c := range s.hub.GetClientsInRide(rideID) {
		if c.ID == client.ID {
			continue
		}
		out := ws.NewMessage(ws.TypeTyping, map[string]interface{}{
			"is_typing":   isTyping,
			"sender_id":   client.ID,
			"sender_role": string(client.Role),
		})
		out.RideID = rideID
		out.UserID = client.ID
		c.SendMessage(out)
	}
}

// clientError picks the text sent back over the socket. Only client-facing
// AppErrors are echoed.
func clientError(err error, fallback string) string {
	if appErr, ok := common.IsAppError(err); ok && appErr.Code < 500 {
		return appErr.Message
	}
	return fallback
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
