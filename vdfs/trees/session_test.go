package trees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportedSession(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "replacing an imported file shadows it until the slot is free",
			test: func(t *testing.T) {
				tree := NewContentTree(WithPolicy(StaticPolicy{ReplaceOnCollision: true}))
				imp, err := tree.AddImportedSessionFile(nil, ImportedInfo{Name: "x", Size: 4096, Address: 100})
				require.NoError(t, err)
				assert.True(t, imp.IsImported())
				assert.Equal(t, int64(100), imp.ImportAddress())
				assert.True(t, tree.HasImported())

				n, err := tree.AddFromMetadata(nil, home+"/x", fileInfo("x", 100))
				require.NoError(t, err)
				assert.True(t, tree.Root().HasShadowed())
				assert.Equal(t, []*Node{imp}, tree.Root().Shadowed())
				assert.Equal(t, NoRef, imp.Ref())
				assert.Same(t, n, tree.NodeAtPath("/x"))
				requireValid(t, tree)

				require.NoError(t, tree.RemoveNode(n))
				assert.Same(t, imp, tree.NodeAtPath("/x"))
				assert.True(t, imp.Ref().IsValid())
				assert.False(t, tree.Root().HasShadowed())
				requireValid(t, tree)
			},
		},
		{
			name: "imported entries arriving under new content are shadowed",
			test: func(t *testing.T) {
				tree := NewContentTree()
				y, err := tree.AddFromMetadata(nil, home+"/y", fileInfo("y", 1))
				require.NoError(t, err)
				imp, err := tree.AddImportedSessionFile(nil, ImportedInfo{Name: "y"})
				require.NoError(t, err)

				assert.Same(t, y, tree.NodeAtPath("/y"))
				assert.Equal(t, NoRef, imp.Ref())
				require.NoError(t, tree.RemoveNode(y))
				assert.Same(t, imp, tree.NodeAtPath("/y"))
				requireValid(t, tree)
			},
		},
		{
			name: "removed imported directory comes back with its content",
			test: func(t *testing.T) {
				tree := NewContentTree()
				old, err := tree.AddImportedSessionFile(nil, ImportedInfo{Name: "old", IsDir: true})
				require.NoError(t, err)
				f, err := tree.AddImportedSessionFile(old, ImportedInfo{Name: "f", Size: 10})
				require.NoError(t, err)

				require.NoError(t, tree.RemoveNode(old))
				assert.Nil(t, tree.NodeAtPath("/old"))
				assert.Equal(t, FileTreeStats{}, tree.Stats())
				requireValid(t, tree)

				repl, err := tree.AddEmptyDirectory(nil, "old")
				require.NoError(t, err)
				require.NoError(t, tree.RemoveNode(repl))
				assert.Same(t, f, tree.NodeAtPath("/old/f"))
				assert.True(t, f.Ref().IsValid())
				assert.Equal(t, FileTreeStats{Files: 1, Dirs: 1}, tree.Stats())
				requireValid(t, tree)
			},
		},
		{
			name: "new content merges into imported directories",
			test: func(t *testing.T) {
				tree := NewContentTree()
				old, err := tree.AddImportedSessionFile(nil, ImportedInfo{Name: "old", IsDir: true})
				require.NoError(t, err)
				n, err := tree.AddFromMetadata(old, home+"/new.txt", fileInfo("new.txt", 1))
				require.NoError(t, err)
				assert.True(t, n.IsGrafted())

				fake, err := tree.AddEmptyDirectory(nil, "fake")
				require.NoError(t, err)
				_, err = tree.AddImportedSessionFile(fake, ImportedInfo{Name: "z"})
				assert.ErrorIs(t, err, ErrInvalidNode)

				c, ok := tree.GetContents(ContentsOptions{})
				require.True(t, ok)
				assert.Contains(t, c.Grafts, Graft{URI: home + "/new.txt", Path: "/old/new.txt"})

				require.NoError(t, tree.Rename(old, "older"))
				assert.False(t, old.IsGrafted())
				assert.ErrorIs(t, tree.Move(old, fake), ErrImportedNode)
				requireValid(t, tree)
			},
		},
		{
			name: "removing the session",
			test: func(t *testing.T) {
				tree := NewContentTree(WithPolicy(StaticPolicy{ReplaceOnCollision: true}))
				old, err := tree.AddImportedSessionFile(nil, ImportedInfo{Name: "old", IsDir: true})
				require.NoError(t, err)
				_, err = tree.AddFromMetadata(old, home+"/new.txt", fileInfo("new.txt", 1))
				require.NoError(t, err)
				_, err = tree.AddImportedSessionFile(nil, ImportedInfo{Name: "x"})
				require.NoError(t, err)
				_, err = tree.AddFromMetadata(nil, home+"/x", fileInfo("x", 1))
				require.NoError(t, err)

				tree.RemoveImported()
				assert.False(t, tree.HasImported())
				assert.Nil(t, tree.NodeAtPath("/old"))
				assert.NotNil(t, tree.NodeAtPath("/x"))
				assert.Equal(t, 1, tree.Grafts().Len())
				requireValid(t, tree)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}
