package storage

import (
	"chat-service/domain/chat"
	"chat-service/errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Records are protobuf messages whose schema is declared below instead of in
// a .proto file. Field numbers are part of the on-disk format and must never
// be reused.
var records = mustBuildRecords(&descriptorpb.FileDescriptorProto{
	Name:    proto.String("chat_service/storage/records.proto"),
	Package: proto.String("chat_service.storage"),
	Syntax:  proto.String("proto2"),
	MessageType: []*descriptorpb.DescriptorProto{
		record("Chat",
			scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("created_at", 4, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			scalar("updated_at", 5, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
		record("Participant",
			scalar("chat_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("user_id", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("joined_at", 3, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			scalar("ordinal", 4, descriptorpb.FieldDescriptorProto_TYPE_UINT32)),
		record("Message",
			scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("chat_id", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("author_id", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("content", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("created_at", 5, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
		record("User",
			scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("username", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("email", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("created_at", 4, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
	},
})

var (
	chatRecord        = records.Messages().ByName("Chat")
	participantRecord = records.Messages().ByName("Participant")
	messageRecord     = records.Messages().ByName("Message")
	userRecord        = records.Messages().ByName("User")
)

func record(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

// A broken schema is a programming error, caught by any test of the package.
func mustBuildRecords(file *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(file, nil)
	if err != nil {
		panic(fmt.Sprintf("storage records schema: %v", err))
	}
	return fd
}

// member is a participant row with its position in the creating request.
type member struct {
	chat.Participant
	Ordinal uint32
}

type recordValue struct {
	msg *dynamicpb.Message
}

func newRecord(desc protoreflect.MessageDescriptor) recordValue {
	return recordValue{msg: dynamicpb.NewMessage(desc)}
}

func (r recordValue) field(name string) protoreflect.FieldDescriptor {
	return r.msg.Descriptor().Fields().ByName(protoreflect.Name(name))
}

func (r recordValue) setString(name, v string) {
	r.msg.Set(r.field(name), protoreflect.ValueOfString(v))
}

func (r recordValue) setTime(name string, t time.Time) {
	r.msg.Set(r.field(name), protoreflect.ValueOfInt64(t.UnixNano()))
}

func (r recordValue) has(name string) bool {
	return r.msg.Has(r.field(name))
}

func (r recordValue) getString(name string) string {
	return r.msg.Get(r.field(name)).String()
}

func (r recordValue) getTime(name string) time.Time {
	return time.Unix(0, r.msg.Get(r.field(name)).Int()).UTC()
}

func (r recordValue) id(name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.getString(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("field %s: %w", name, err)
	}
	return id, nil
}

func (r recordValue) marshal() ([]byte, error) {
	b, err := proto.Marshal(r.msg)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", errors.ErrPersistence, r.msg.Descriptor().Name(), err)
	}
	return b, nil
}

func unmarshal(desc protoreflect.MessageDescriptor, b []byte) (recordValue, error) {
	r := newRecord(desc)
	if err := proto.Unmarshal(b, r.msg); err != nil {
		return recordValue{}, err
	}
	return r, nil
}

func decodeError(record string, err error) error {
	return fmt.Errorf("%w: decode %s: %v", errors.ErrPersistence, record, err)
}

func encodeChat(c chat.Chat) ([]byte, error) {
	r := newRecord(chatRecord)
	r.setString("id", c.ID.String())
	if c.Name != nil {
		r.setString("name", *c.Name)
	}
	r.setTime("created_at", c.CreatedAt)
	r.setTime("updated_at", c.UpdatedAt)
	return r.marshal()
}

func decodeChat(b []byte) (chat.Chat, error) {
	r, err := unmarshal(chatRecord, b)
	if err != nil {
		return chat.Chat{}, decodeError("chat", err)
	}
	id, err := r.id("id")
	if err != nil {
		return chat.Chat{}, decodeError("chat", err)
	}
	c := chat.Chat{ID: id, CreatedAt: r.getTime("created_at"), UpdatedAt: r.getTime("updated_at")}
	if r.has("name") {
		name := r.getString("name")
		c.Name = &name
	}
	return c, nil
}

func encodeParticipant(m member) ([]byte, error) {
	r := newRecord(participantRecord)
	r.setString("chat_id", m.ChatID.String())
	r.setString("user_id", m.UserID.String())
	r.setTime("joined_at", m.JoinedAt)
	r.msg.Set(r.field("ordinal"), protoreflect.ValueOfUint32(m.Ordinal))
	return r.marshal()
}

func decodeParticipant(b []byte) (member, error) {
	r, err := unmarshal(participantRecord, b)
	if err != nil {
		return member{}, decodeError("participant", err)
	}
	chatID, err := r.id("chat_id")
	if err != nil {
		return member{}, decodeError("participant", err)
	}
	userID, err := r.id("user_id")
	if err != nil {
		return member{}, decodeError("participant", err)
	}
	return member{
		Participant: chat.Participant{ChatID: chatID, UserID: userID, JoinedAt: r.getTime("joined_at")},
		Ordinal:     uint32(r.msg.Get(r.field("ordinal")).Uint()),
	}, nil
}

func encodeMessage(m chat.Message) ([]byte, error) {
	r := newRecord(messageRecord)
	r.setString("id", m.ID.String())
	r.setString("chat_id", m.ChatID.String())
	r.setString("author_id", m.AuthorID.String())
	r.setString("content", m.Content)
	r.setTime("created_at", m.CreatedAt)
	return r.marshal()
}

func decodeMessage(b []byte) (chat.Message, error) {
	r, err := unmarshal(messageRecord, b)
	if err != nil {
		return chat.Message{}, decodeError("message", err)
	}
	var m chat.Message
	if m.ID, err = r.id("id"); err != nil {
		return chat.Message{}, decodeError("message", err)
	}
	if m.ChatID, err = r.id("chat_id"); err != nil {
		return chat.Message{}, decodeError("message", err)
	}
	if m.AuthorID, err = r.id("author_id"); err != nil {
		return chat.Message{}, decodeError("message", err)
	}
	m.Content = r.getString("content")
	m.CreatedAt = r.getTime("created_at")
	return m, nil
}

func encodeUser(u User) ([]byte, error) {
	r := newRecord(userRecord)
	r.setString("id", u.ID.String())
	r.setString("username", u.Username)
	r.setString("email", u.Email)
	r.setTime("created_at", u.CreatedAt)
	return r.marshal()
}

func decodeUser(b []byte) (User, error) {
	r, err := unmarshal(userRecord, b)
	if err != nil {
		return User{}, decodeError("user", err)
	}
	id, err := r.id("id")
	if err != nil {
		return User{}, decodeError("user", err)
	}
	return User{ID: id, Username: r.getString("username"), Email: r.getString("email"), CreatedAt: r.getTime("created_at")}, nil
}
