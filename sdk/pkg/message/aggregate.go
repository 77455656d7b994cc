package message

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/json"
)

// Aggregate 一个聚合周期内取到的输入的并集
// Tickets / Passengers 最多一项，缺失的输入表现为空映射或空列表
type Aggregate struct {
	TrainID    string    `json:"train_id"`
	Schedule   Payload   `json:"schedule"`
	Tickets    []Payload `json:"tickets"`
	Passengers []Payload `json:"passengers"`
}

// BuildAggregate 按取到的输入构造聚合记录，空输入视为缺失
func BuildAggregate(trainID string, schedule, ticket, passenger Payload) Aggregate {
	agg := Aggregate{
		TrainID:    trainID,
		Schedule:   Payload{},
		Tickets:    []Payload{},
		Passengers: []Payload{},
	}
	if schedule.Present() {
		agg.Schedule = schedule
	}
	if ticket.Present() {
		agg.Tickets = append(agg.Tickets, ticket)
	}
	if passenger.Present() {
		agg.Passengers = append(agg.Passengers, passenger)
	}
	return agg
}

// Notification 发给乘客的通知
type Notification struct {
	PassengerID string `json:"passenger_id"`
	Message     string `json:"message"`
}

const (
	FieldPassengerID = "passenger_id"

	// UnknownPassenger 聚合记录中没有乘客时使用
	UnknownPassenger = "unknown"
)

// DeriveNotification 由聚合记录生成通知，相同输入总是得到相同输出
func DeriveNotification(aggregate Payload) Notification {
	passenger := Payload{FieldPassengerID: UnknownPassenger}
	if passengers := aggregate.Slice("passengers"); len(passengers) > 0 {
		m, err := cast.ToStringMapE(passengers[0])
		if err != nil || m == nil {
			m = map[string]interface{}{}
		}
		passenger = Payload(m)
	}

	schedule := aggregate.Map("schedule")
	from := ""
	if route := schedule.Slice("route"); len(route) > 0 {
		from = cast.ToString(route[0])
	}

	return Notification{
		PassengerID: passenger.StringOr(FieldPassengerID, UnknownPassenger),
		Message: fmt.Sprintf("Your train (ID: %s) is scheduled to depart at %s from %s.",
			aggregate.String("train_id"), schedule.String("departure_time"), from),
	}
}

// Encode 序列化聚合记录
func (a Aggregate) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// Encode 序列化通知
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}
