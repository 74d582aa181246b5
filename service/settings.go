package service

import (
	"context"
	"net/url"

	"github.com/go-lti/ltiprovider/internal/xmltree"
	"github.com/go-lti/ltiprovider/lti"
)

// ReadSetting loads the tool setting stored by the consumer
type ReadSetting struct {
	form
	ID    string
	Value string
}

func (*ReadSetting) ServiceName() string {
	return "basic-lti-loadsetting"
}

func (op *ReadSetting) params() url.Values {
	return url.Values{"id": {op.ID}}
}

func (op *ReadSetting) HandleResponse(root *xmltree.Node) error {
	if v, ok := root.Find("setting.value"); ok && len(v.Children) == 0 {
		op.Value = v.Text
	}
	return nil
}

// WriteSetting stores the tool setting at the consumer
type WriteSetting struct {
	form
	ID    string
	Value string
}

func (*WriteSetting) ServiceName() string {
	return "basic-lti-savesetting"
}

func (op *WriteSetting) params() url.Values {
	return url.Values{"id": {op.ID}, "setting": {op.Value}}
}

func (*WriteSetting) HandleResponse(*xmltree.Node) error {
	return nil
}

// DeleteSetting removes the tool setting at the consumer
type DeleteSetting struct {
	form
	ID string
}

func (*DeleteSetting) ServiceName() string {
	return "basic-lti-deletesetting"
}

func (op *DeleteSetting) params() url.Values {
	return url.Values{"id": {op.ID}}
}

func (*DeleteSetting) HandleResponse(*xmltree.Node) error {
	return nil
}

// ReadToolSetting returns the tool setting the consumer holds for link
func (c *Client) ReadToolSetting(ctx context.Context, link *lti.ResourceLink) (string, error) {
	op := &ReadSetting{ID: link.Setting(lti.SettingToolSettingID, "")}
	if err := c.Do(ctx, link.Consumer(), link.Setting(lti.SettingToolSettingURL, ""), op); err != nil {
		return "", err
	}
	return op.Value, nil
}

// WriteToolSetting stores value at the consumer and keeps a copy in the
// settings of link
func (c *Client) WriteToolSetting(ctx context.Context, link *lti.ResourceLink, value string) error {
	op := &WriteSetting{
		ID:    link.Setting(lti.SettingToolSettingID, ""),
		Value: value,
	}
	if err := c.Do(ctx, link.Consumer(), link.Setting(lti.SettingToolSettingURL, ""), op); err != nil {
		return err
	}
	link.SetSetting(lti.SettingToolSetting, value)
	return link.SaveSettings()
}

// DeleteToolSetting removes the tool setting at the consumer and from the
// settings of link
func (c *Client) DeleteToolSetting(ctx context.Context, link *lti.ResourceLink) error {
	op := &DeleteSetting{ID: link.Setting(lti.SettingToolSettingID, "")}
	if err := c.Do(ctx, link.Consumer(), link.Setting(lti.SettingToolSettingURL, ""), op); err != nil {
		return err
	}
	link.SetSetting(lti.SettingToolSetting, "")
	return link.SaveSettings()
}
