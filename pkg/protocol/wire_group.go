package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

func marshalGroupUpdate(g *GroupUpdated) ([]byte, error) {
	var b []byte
	if g.GroupID != "" {
		b = protowire.AppendTag(b, groupFieldGroupID, protowire.BytesType)
		b = protowire.AppendString(b, g.GroupID)
	}
	switch c := g.Command.(type) {
	case GroupInvite:
		b = appendMessage(b, groupFieldInvite, marshalGroupInvite(&c))
	case GroupInviteResponse:
		b = appendMessage(b, groupFieldInviteResponse, marshalGroupInviteResponse(&c))
	case GroupPromote:
		b = appendMessage(b, groupFieldPromote, marshalGroupPromote(&c))
	case GroupInfoChange:
		b = appendMessage(b, groupFieldInfoChange, marshalGroupInfoChange(&c))
	case GroupMemberChange:
		b = appendMessage(b, groupFieldMemberChange, marshalGroupMemberChange(&c))
	case GroupMemberLeft:
		b = appendMessage(b, groupFieldMemberLeft, nil)
	case GroupMemberLeftNotification:
		b = appendMessage(b, groupFieldLeftNotification, nil)
	case GroupDeleteMemberContent:
		b = appendMessage(b, groupFieldDeleteContent, marshalGroupDeleteContent(&c))
	default:
		return nil, ErrInvalidClosedGroupUpdate
	}
	return b, nil
}

func unmarshalGroupUpdate(b []byte) (*GroupUpdated, error) {
	g := &GroupUpdated{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case groupFieldGroupID:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			g.GroupID, b = string(v), rest
		case groupFieldInvite:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c, err := unmarshalGroupInvite(v)
			if err != nil {
				return nil, err
			}
			g.Command, b = c, rest
		case groupFieldInviteResponse:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c, err := unmarshalGroupInviteResponse(v)
			if err != nil {
				return nil, err
			}
			g.Command, b = c, rest
		case groupFieldPromote:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c, err := unmarshalGroupPromote(v)
			if err != nil {
				return nil, err
			}
			g.Command, b = c, rest
		case groupFieldInfoChange:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c, err := unmarshalGroupInfoChange(v)
			if err != nil {
				return nil, err
			}
			g.Command, b = c, rest
		case groupFieldMemberChange:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c, err := unmarshalGroupMemberChange(v)
			if err != nil {
				return nil, err
			}
			g.Command, b = c, rest
		case groupFieldMemberLeft:
			_, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			g.Command, b = GroupMemberLeft{}, rest
		case groupFieldLeftNotification:
			_, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			g.Command, b = GroupMemberLeftNotification{}, rest
		case groupFieldDeleteContent:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c, err := unmarshalGroupDeleteContent(v)
			if err != nil {
				return nil, err
			}
			g.Command, b = c, rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	if g.Command == nil {
		return nil, ErrInvalidClosedGroupUpdate
	}
	return g, nil
}

func marshalGroupInvite(c *GroupInvite) []byte {
	var b []byte
	if c.Name != "" {
		b = protowire.AppendTag(b, inviteFieldName, protowire.BytesType)
		b = protowire.AppendString(b, c.Name)
	}
	b = protowire.AppendTag(b, inviteFieldInvitee, protowire.BytesType)
	b = protowire.AppendString(b, c.Invitee)
	if len(c.MemberAuthData) > 0 {
		b = protowire.AppendTag(b, inviteFieldAuthData, protowire.BytesType)
		b = protowire.AppendBytes(b, c.MemberAuthData)
	}
	if len(c.AdminSignature) > 0 {
		b = protowire.AppendTag(b, inviteFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, c.AdminSignature)
	}
	return b
}

func unmarshalGroupInvite(b []byte) (GroupInvite, error) {
	var c GroupInvite
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case inviteFieldName:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.Name, b = string(v), rest
		case inviteFieldInvitee:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.Invitee, b = string(v), rest
		case inviteFieldAuthData:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.MemberAuthData, b = append([]byte(nil), v...), rest
		case inviteFieldSignature:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.AdminSignature, b = append([]byte(nil), v...), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return c, err
			}
			b = rest
		}
	}
	return c, nil
}

func marshalGroupInviteResponse(c *GroupInviteResponse) []byte {
	var b []byte
	if c.Approved {
		b = protowire.AppendTag(b, inviteResponseFieldApproved, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func unmarshalGroupInviteResponse(b []byte) (GroupInviteResponse, error) {
	var c GroupInviteResponse
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case inviteResponseFieldApproved:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return c, err
			}
			c.Approved, b = v != 0, rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return c, err
			}
			b = rest
		}
	}
	return c, nil
}

func marshalGroupPromote(c *GroupPromote) []byte {
	var b []byte
	if c.Name != "" {
		b = protowire.AppendTag(b, promoteFieldName, protowire.BytesType)
		b = protowire.AppendString(b, c.Name)
	}
	b = protowire.AppendTag(b, promoteFieldMember, protowire.BytesType)
	b = protowire.AppendString(b, c.Member)
	if len(c.AdminSignature) > 0 {
		b = protowire.AppendTag(b, promoteFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, c.AdminSignature)
	}
	return b
}

func unmarshalGroupPromote(b []byte) (GroupPromote, error) {
	var c GroupPromote
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case promoteFieldName:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.Name, b = string(v), rest
		case promoteFieldMember:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.Member, b = string(v), rest
		case promoteFieldSignature:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.AdminSignature, b = append([]byte(nil), v...), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return c, err
			}
			b = rest
		}
	}
	return c, nil
}

func marshalGroupInfoChange(c *GroupInfoChange) []byte {
	var b []byte
	b = protowire.AppendTag(b, infoChangeFieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Kind))
	if c.Name != "" {
		b = protowire.AppendTag(b, infoChangeFieldName, protowire.BytesType)
		b = protowire.AppendString(b, c.Name)
	}
	if c.Expiration != 0 {
		b = protowire.AppendTag(b, infoChangeFieldExpiration, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Expiration))
	}
	if len(c.AdminSignature) > 0 {
		b = protowire.AppendTag(b, infoChangeFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, c.AdminSignature)
	}
	return b
}

func unmarshalGroupInfoChange(b []byte) (GroupInfoChange, error) {
	var c GroupInfoChange
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case infoChangeFieldKind:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return c, err
			}
			c.Kind, b = GroupInfoChangeKind(v), rest
		case infoChangeFieldName:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.Name, b = string(v), rest
		case infoChangeFieldExpiration:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return c, err
			}
			c.Expiration, b = uint32(v), rest
		case infoChangeFieldSignature:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.AdminSignature, b = append([]byte(nil), v...), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return c, err
			}
			b = rest
		}
	}
	return c, nil
}

func marshalGroupMemberChange(c *GroupMemberChange) []byte {
	var b []byte
	b = protowire.AppendTag(b, memberChangeFieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Kind))
	for _, m := range c.Members {
		b = protowire.AppendTag(b, memberChangeFieldMember, protowire.BytesType)
		b = protowire.AppendString(b, m)
	}
	if c.HistoryShared {
		b = protowire.AppendTag(b, memberChangeFieldHistory, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if len(c.AdminSignature) > 0 {
		b = protowire.AppendTag(b, memberChangeFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, c.AdminSignature)
	}
	return b
}

func unmarshalGroupMemberChange(b []byte) (GroupMemberChange, error) {
	var c GroupMemberChange
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case memberChangeFieldKind:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return c, err
			}
			c.Kind, b = GroupMemberChangeKind(v), rest
		case memberChangeFieldMember:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.Members, b = append(c.Members, string(v)), rest
		case memberChangeFieldHistory:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return c, err
			}
			c.HistoryShared, b = v != 0, rest
		case memberChangeFieldSignature:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.AdminSignature, b = append([]byte(nil), v...), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return c, err
			}
			b = rest
		}
	}
	return c, nil
}

func marshalGroupDeleteContent(c *GroupDeleteMemberContent) []byte {
	var b []byte
	for _, m := range c.Members {
		b = protowire.AppendTag(b, deleteContentFieldMember, protowire.BytesType)
		b = protowire.AppendString(b, m)
	}
	for _, h := range c.MessageHashes {
		b = protowire.AppendTag(b, deleteContentFieldHash, protowire.BytesType)
		b = protowire.AppendString(b, h)
	}
	if len(c.AdminSignature) > 0 {
		b = protowire.AppendTag(b, deleteContentFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, c.AdminSignature)
	}
	return b
}

func unmarshalGroupDeleteContent(b []byte) (GroupDeleteMemberContent, error) {
	var c GroupDeleteMemberContent
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case deleteContentFieldMember:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.Members, b = append(c.Members, string(v)), rest
		case deleteContentFieldHash:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.MessageHashes, b = append(c.MessageHashes, string(v)), rest
		case deleteContentFieldSignature:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return c, err
			}
			c.AdminSignature, b = append([]byte(nil), v...), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return c, err
			}
			b = rest
		}
	}
	return c, nil
}
