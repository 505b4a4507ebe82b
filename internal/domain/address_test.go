package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "foo@example.com", NormalizeAddress("  <FOO@Example.Com> "))
	assert.Equal(t, "bar@temp-mail.gr", NormalizeAddress("bar@temp-mail.gr"))
}

func TestExtractLocalPart(t *testing.T) {
	t.Run("大小写和尖括号被归一化", func(t *testing.T) {
		local, address, err := ExtractLocalPart("<FOO@Example.Com>")

		assert.NoError(t, err)
		assert.Equal(t, "foo", local)
		assert.Equal(t, "foo@example.com", address)
	})

	t.Run("本地部分取第一个@之前", func(t *testing.T) {
		local, _, err := ExtractLocalPart("a.b+c@x@y")

		assert.NoError(t, err)
		assert.Equal(t, "a.b+c", local)
	})

	t.Run("不含@的地址被拒绝", func(t *testing.T) {
		_, _, err := ExtractLocalPart("not-an-email")

		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("空本地部分被拒绝", func(t *testing.T) {
		_, _, err := ExtractLocalPart("@example.com")

		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("空域名被拒绝", func(t *testing.T) {
		_, _, err := ExtractLocalPart("abc@")

		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("非法字符被拒绝", func(t *testing.T) {
		_, _, err := ExtractLocalPart("a b@example.com")

		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})
}
