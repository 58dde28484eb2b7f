// Package vectorindex 平面精确检索的向量索引。
// 向量统一做L2归一化，内积即等价于余弦相似度；
// 索引快照与位置→块ID映射成对持久化，二者长度始终一致。
package vectorindex

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	indexFileName = "flat.index"
	idMapFileName = "idmap.json"
)

// Hit 单条检索命中
type Hit struct {
	ChunkID uint    `json:"chunk_id"`
	Score   float32 `json:"score"`
}

type Index struct {
	mu sync.RWMutex

	dim     int
	vectors [][]float32
	idMap   []uint
	created bool

	indexPath string
	idMapPath string
}

// snapshot gob快照载荷
type snapshot struct {
	Dim     int
	Vectors [][]float32
}

func New(baseDir string) *Index {
	return &Index{
		indexPath: filepath.Join(baseDir, indexFileName),
		idMapPath: filepath.Join(baseDir, idMapFileName),
	}
}

// Load 加载已有快照；快照不存在时按dim新建空索引（这不是错误），
// 快照存在但读不出来则返回存储错误。已存快照的维度以快照为准。
func (x *Index) Load(dim int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.created {
		return nil
	}

	data, err := os.ReadFile(x.indexPath)
	if os.IsNotExist(err) {
		x.dim = dim
		x.vectors = nil
		x.idMap = nil
		x.created = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index snapshot: %v", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("corrupt index snapshot %s: %v", x.indexPath, err)
	}

	idData, err := os.ReadFile(x.idMapPath)
	if err != nil {
		return fmt.Errorf("failed to read id map: %v", err)
	}
	var idMap []uint
	if err := json.Unmarshal(idData, &idMap); err != nil {
		return fmt.Errorf("corrupt id map %s: %v", x.idMapPath, err)
	}

	if len(idMap) != len(snap.Vectors) {
		return fmt.Errorf("id map length %d does not match vector count %d", len(idMap), len(snap.Vectors))
	}

	x.dim = snap.Dim
	x.vectors = snap.Vectors
	x.idMap = idMap
	x.created = true
	return nil
}

// Count 当前向量数，恒等于id映射长度
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

func (x *Index) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// AddVectors 归一化后按序追加向量与块ID，并持久化两份快照。
// 整个追加+落盘是一个临界区：并发AddVectors/Search之间互斥，
// 保证id映射与向量数始终同步。
func (x *Index) AddVectors(vectors [][]float32, chunkIDs []uint) error {
	if len(vectors) != len(chunkIDs) {
		return fmt.Errorf("vectors/chunk ids length mismatch: %d != %d", len(vectors), len(chunkIDs))
	}
	if len(vectors) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.created {
		return fmt.Errorf("index not loaded")
	}

	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), x.dim)
		}
	}

	newVectors := make([][]float32, 0, len(x.vectors)+len(vectors))
	newVectors = append(newVectors, x.vectors...)
	for _, v := range vectors {
		newVectors = append(newVectors, normalized(v))
	}

	newIDMap := make([]uint, 0, len(x.idMap)+len(chunkIDs))
	newIDMap = append(newIDMap, x.idMap...)
	newIDMap = append(newIDMap, chunkIDs...)

	// 先落盘再替换内存态，落盘失败时索引保持原样
	if err := x.persist(newVectors, newIDMap); err != nil {
		return err
	}

	x.vectors = newVectors
	x.idMap = newIDMap
	return nil
}

// Search 对每个查询向量返回至多topK个(块ID,分数)，分数降序，
// 同分时插入序小者优先。索引未建立或为空时返回空结果而非报错。
func (x *Index) Search(queries [][]float32, topK int) ([][]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([][]Hit, len(queries))
	if !x.created || len(x.vectors) == 0 || topK <= 0 {
		return results, nil
	}

	for qi, q := range queries {
		if len(q) != x.dim {
			return nil, fmt.Errorf("query %d has dimension %d, index expects %d", qi, len(q), x.dim)
		}
		nq := normalized(q)

		type scored struct {
			ord   int
			score float32
		}
		candidates := make([]scored, len(x.vectors))
		for ord, v := range x.vectors {
			candidates[ord] = scored{ord: ord, score: dot(nq, v)}
		}

		// 稳定排序保证同分时按插入序
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})

		k := topK
		if k > len(candidates) {
			k = len(candidates)
		}
		hits := make([]Hit, 0, k)
		for _, c := range candidates[:k] {
			hits = append(hits, Hit{ChunkID: x.idMap[c.ord], Score: c.score})
		}
		results[qi] = hits
	}

	return results, nil
}

// persist 先写临时文件再rename，避免写一半的快照被下次Load读到
func (x *Index) persist(vectors [][]float32, idMap []uint) error {
	if err := os.MkdirAll(filepath.Dir(x.indexPath), 0o755); err != nil {
		return fmt.Errorf("failed to create index dir: %v", err)
	}

	tmpIndex := x.indexPath + ".tmp"
	f, err := os.Create(tmpIndex)
	if err != nil {
		return fmt.Errorf("failed to create index snapshot: %v", err)
	}
	if err := gob.NewEncoder(f).Encode(snapshot{Dim: x.dim, Vectors: vectors}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode index snapshot: %v", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write index snapshot: %v", err)
	}

	idData, err := json.Marshal(idMap)
	if err != nil {
		return fmt.Errorf("failed to encode id map: %v", err)
	}
	tmpIDMap := x.idMapPath + ".tmp"
	if err := os.WriteFile(tmpIDMap, idData, 0o644); err != nil {
		return fmt.Errorf("failed to write id map: %v", err)
	}

	if err := os.Rename(tmpIndex, x.indexPath); err != nil {
		return fmt.Errorf("failed to replace index snapshot: %v", err)
	}
	if err := os.Rename(tmpIDMap, x.idMapPath); err != nil {
		return fmt.Errorf("failed to replace id map: %v", err)
	}
	return nil
}

func normalized(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
